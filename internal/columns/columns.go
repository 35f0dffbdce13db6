// Package columns holds the fixed translation from normalized, flattened
// kununu field names to the destination column names of the output table.
package columns

import (
	"fmt"

	"kununu/internal/normalize"
)

// Column is one (source field -> destination column) pair.
type Column struct {
	Source string `json:"source"`
	Dest   string `json:"dest"`
}

// mapping is ordered; Project emits columns in this order.
var mapping = []Column{
	{"firm_name", "firm_name"},
	{"url", "kn_url"},
	{"uuid", "uuid"},
	{"views_num", "kn_views_num"},
	{"percent_recommend_overall", "kn_employee_rec_score"},
	{"overall_rating", "kn_overall"},
	{"total_reviews_num", "kn_total_reviews_num"},
	{"salaries_posted_num", "kn_salaries_posted_num"},
	{"gehaltsozialleistungen", "kn_salary_benefits"},
	{"image", "kn_image"},
	{"karriereweiterbildung", "kn_career_development"},
	{"arbeitsatmosphare", "kn_work_atmosphere"},
	{"kommunikation", "kn_communication"},
	{"kollegenzusammenhalt", "kn_colleague_cohesion"},
	{"work_life_balance", "kn_work_life_balance"},
	{"vorgesetztenverhalten", "kn_superiors_behavior"},
	{"interessante_aufgaben", "kn_interesting_tasks"},
	{"arbeitsbedingungen", "kn_working_conditions"},
	{"umwelt_sozialbewusstsein", "kn_environment_social_awareness"},
	{"gleichberechtigung", "kn_equal_rights"},
	{"umgang_mit_alteren_kollegen", "kn_dealing_with_older_colleagues"},
	{"all_applicants_review_num", "kn_all_applicants_review_num"},
	{"all_applicants_review_score", "kn_all_applicants_review_score"},
	{"hired_review_num", "kn_hired_review_num"},
	{"hired_review_score", "kn_hired_score"},
	{"rejected_review_num", "kn_rejected_review_num"},
	{"rejected_review_score", "kn_rejected_score"},
	{"offerdeclined_review_num", "kn_offer_declined_review_num"},
	{"offerdeclined_review_score", "kn_offer_declined_score"},
	{"deferred_review_num", "kn_deferred_review_num"},
	{"deferred_review_score", "kn_deferred_score"},
	{"employees_review_num", "kn_employees_review_num"},
	{"employee_review_score", "kn_employee_review_score"},
	{"employee_rec_score", "kn_employee_rec_score"},
	{"corporate_culture_review_num", "kn_corporate_culture_review_num"},
	{"satisfied_salary_pct", "kn_satisfied_salary_pct"},
	{"kantine", "kn_canteen"},
	{"flexible_arbeitszeiten", "kn_flexible_working_hours"},
	{"betriebsarzt", "kn_company_doctor"},
	{"betriebliche_altersvorsorge", "kn_company_retirement_provision"},
	{"parkplatz", "kn_parking"},
	{"homeoffice", "kn_home_office"},
	// Mis-decoded "maßnahmen" as it appears in the scraped payloads; keep byte for byte.
	{"gesundheits_ma√ünahmen", "kn_health_measures"},
	{"rabatte", "kn_discounts"},
	{"diensthandy", "kn_company_phone"},
	{"mitarbeiter_beteiligung", "kn_employee_participation"},
	{"internetnutzung", "kn_internet_usage"},
	{"gute_verkehrsanbindung", "kn_good_transport_links"},
	{"mitarbeiter_events", "kn_employee_events"},
	{"essenszulage", "kn_food_allowance"},
	{"barrierefrei", "kn_accessible"},
	{"coaching", "kn_coaching"},
	{"kinderbetreuung", "kn_childcare"},
	{"firmenwagen", "kn_company_car"},
	{"hund_erlaubt", "kn_dogs_allowed"},
	{"sehr_gut_reviews", "kn_very_good_reviews"},
	{"gut_reviews", "kn_good_reviews"},
	{"befriedigend_reviews", "kn_satisfactory_reviews"},
	{"genuegend_reviews", "kn_insufficient_reviews"},
	{"name", "kn_firm_name"},
	{"simple_name", "kn_firm_simple_name"},
	{"canonical_slug", "kn_canonical_slug"},
	{"locations_main_country_code", "kn_country_code"},
	{"locations_main_city", "kn_city"},
	{"locations_main_state", "kn_state"},
	{"locations_total", "kn_locations_total"},
	{"is_verified", "kn_is_verified"},
	{"is_claimed", "kn_is_claimed"},
	{"is_top_company_paid", "kn_is_top_company_paid"},
	{"industry_id", "kn_industry_id"},
	{"total_companies", "kn_total_companies"},
	{"reviews_total_published_reviews_last_two_years", "kn_reviews_published_last_two_years"},
	{"reviews_total_published_reviews_offline_deleted_last_two_years", "kn_reviews_offline_deleted_last_two_years"},
	{"reviews_first_review_year", "kn_reviews_first_year"},
	{"reviews_industry_average_score", "kn_industry_avg_score"},
	{"reviews_recommendation_rate_percentage", "kn_recommendation_rate_pct"},
	{"reviews_recommendation_rate_total_reviews", "kn_recommendation_total_reviews"},
	{"reviews_recommendation_rate_recommended_total_reviews", "kn_recommendation_total_positive_reviews"},
	{"reviews_recommendation_rate_not_recommended_total_reviews", "kn_recommendation_total_negative_reviews"},
}

var requiredKeys = []string{
	"name", "simple_name", "canonical_slug", "locations_main_country_code",
	"locations_main_city", "locations_main_state", "locations_total",
	"is_verified", "is_claimed", "is_top_company_paid", "industry_id",
	"total_companies", "reviews_total_published_reviews_last_two_years",
	"reviews_total_published_reviews_offline_deleted_last_two_years",
	"reviews_first_review_year", "reviews_industry_average_score",
	"reviews_recommendation_rate_percentage",
	"reviews_recommendation_rate_total_reviews",
	"reviews_recommendation_rate_recommended_total_reviews",
	"reviews_recommendation_rate_not_recommended_total_reviews",
}

var bySource = indexMapping(mapping)

// indexMapping panics on a duplicate source key; the table is static so this
// can only be an editing mistake.
func indexMapping(cols []Column) map[string]string {
	idx := make(map[string]string, len(cols))
	for _, c := range cols {
		if _, dup := idx[c.Source]; dup {
			panic(fmt.Sprintf("columns: duplicate source key %q", c.Source))
		}
		idx[c.Source] = c.Dest
	}
	return idx
}

// Lookup returns the destination column for a normalized source field.
func Lookup(source string) (string, bool) {
	dest, ok := bySource[source]
	return dest, ok
}

// Mapping returns a copy of the full table in its fixed order.
func Mapping() []Column {
	return append([]Column(nil), mapping...)
}

// Len returns the number of table entries.
func Len() int { return len(mapping) }

// RequiredKeys returns a copy of the source fields a record must carry to be
// considered complete.
func RequiredKeys() []string {
	return append([]string(nil), requiredKeys...)
}

// Project returns a new object holding the record's known fields renamed to
// their destination columns, in table order. Unknown source keys are dropped.
// Two sources sharing a destination resolve to whichever comes later in the table.
func Project(record *normalize.Object) *normalize.Object {
	out := normalize.NewObject(len(mapping))
	for _, c := range mapping {
		if v, ok := record.Get(c.Source); ok {
			out.Set(c.Dest, v)
		}
	}
	return out
}

// MissingRequired lists the required keys absent from record, in required-key
// order. A key present with a nil value counts as present.
func MissingRequired(record *normalize.Object) []string {
	var missing []string
	for _, k := range requiredKeys {
		if _, ok := record.Get(k); !ok {
			missing = append(missing, k)
		}
	}
	return missing
}
