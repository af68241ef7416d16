package classifier

import "strings"

// RegisterBuiltinDetectors populates registry with the full column-type
// catalog: Boolean; Numeric with specializations Duns, NumericalCategory,
// ZipCode, PhoneNumber, NordicRegistrationNumber (with country
// specializations Swedish/Norwegian/Finnish/Danish); Text with
// specializations Name, CompanyName, CountryName, CountryCode,
// CurrencyCode, TextCategory. Parents are always registered before their
// children so depth computation at Register time is correct.
//
// Weights and patterns are grounded on
// original_source/src/table_modifier/classifier/detectors/{boolean,numeric,text}.py.
func RegisterBuiltinDetectors(r *Registry) {
	registerBoolean(r)
	registerNumericFamily(r)
	registerTextFamily(r)
}

func anyNumericLike(values []string) bool {
	for _, v := range values {
		if isNumeric(v) {
			return true
		}
	}
	return false
}

func anyTextLike(values []string) bool {
	total := 0
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			total++
		}
	}
	if len(values) == 0 {
		return false
	}
	return float64(total)/float64(len(values)) > 0.1
}

func registerBoolean(r *Registry) {
	boolSet := map[string]struct{}{
		"true": {}, "false": {}, "1": {}, "0": {}, "yes": {}, "no": {},
	}
	r.Register(&Detector{
		TypeName: "boolean",
		Checks: []Check{
			newCheck("boolean_check", 0.5, func(values []string) float64 {
				return byPredicateCount(values, func(v string) bool {
					_, ok := boolSet[strings.ToLower(v)]
					return ok
				})
			}),
		},
	})
}

func registerNumericFamily(r *Registry) {
	numericApplicable := anyNumericLike

	r.Register(&Detector{
		TypeName:   "numeric",
		Checks:     []Check{NumericCheck(0.5)},
		Applicable: numericApplicable,
	})

	r.Register(&Detector{
		TypeName:   "duns",
		ParentType: "numeric",
		Keywords:   []string{"duns"},
		Applicable: numericApplicable,
		Checks: []Check{
			NumericCheck(0.5),
			PatternCheck("duns_check", `^\d{9}$`, 1.0),
			PatternCheck("duns_hyphen_check", `^\d{2}-\d{3}-\d{4}$`, 1.6),
			LengthVarianceCheck("duns_length_variance", 0.1, 1.1),
			UniquenessCheck("duns_uniqueness", 0.8, -1, 1.0),
		},
	})

	r.Register(&Detector{
		TypeName:   "numericalcategory",
		ParentType: "numeric",
		Keywords:   []string{"category", "code"},
		Applicable: numericApplicable,
		Checks: []Check{
			NumericCheck(0.5),
			VarianceCheck("numeric_category_variance", 0, 0.2, 1.0),
			UniquenessCheck("numeric_category_uniqueness", 0, 0.1, 1.0),
		},
	})

	r.Register(&Detector{
		TypeName:   "zipcode",
		ParentType: "numeric",
		Keywords:   []string{"zip", "postal"},
		Applicable: numericApplicable,
		Checks: []Check{
			NumericCheck(0.5),
			PatternCheck("zip_code_check", `^\d{5}(-\d{4})?$`, 1.0),
			PatternCheck("zip_code_5_digit_check", `^\d{5}$`, 1.2),
			LengthVarianceCheck("zip_length_variance", 0.1, 1.1),
			UniquenessCheck("zip_uniqueness", 0.8, -1, 1.0),
		},
	})

	r.Register(&Detector{
		TypeName:   "phonenumber",
		ParentType: "numeric",
		Keywords:   []string{"phone", "tel"},
		Applicable: numericApplicable,
		Checks: []Check{
			NumericCheck(0.5),
			PatternCheck("phone_number_check", `^(?:\+?\d{1,3}[-.\s]?)?(?:\(?\d{2,4}\)?[-.\s]?)?\d{3,4}[-.\s]?\d{4}$`, 0.75),
			LengthVarianceCheck("phone_length_variance", 0.1, 1.1),
			UniquenessCheck("phone_uniqueness", 0.8, -1, 1.0),
		},
	})

	r.Register(&Detector{
		TypeName:   "nordicregistrationnumber",
		ParentType: "numeric",
		Keywords:   []string{"registration", "orgnr", "org_nr"},
		Applicable: numericApplicable,
		Checks: []Check{
			NumericCheck(0.5),
			PatternCheck("nordic_registration_number_check", `^(?:\d{7}-\d|\d{8}|\d{9}|\d{10}|(16|[2-9]\d)\d{6}-?\d{4})$`, 0.5),
			LengthVarianceCheck("nordic_length_variance", 0.1, 1.1),
			UniquenessCheck("nordic_uniqueness", 0.8, -1, 1.0),
		},
	})

	r.Register(&Detector{
		TypeName:   "swedishregistrationnumber",
		ParentType: "nordicregistrationnumber",
		Keywords:   []string{"swedish", "se_orgnr"},
		Applicable: numericApplicable,
		Checks: []Check{
			NumericCheck(0.5),
			PatternCheck("swedish_registration_number_check", `^(16)?\d{6}(-)?\d{4}$`, 1.0),
			LengthVarianceCheck("swedish_length_variance", 0.1, 1.1),
			UniquenessCheck("swedish_uniqueness", 0.8, -1, 1.0),
		},
	})

	r.Register(&Detector{
		TypeName:   "norwegianregistrationnumber",
		ParentType: "nordicregistrationnumber",
		Keywords:   []string{"norwegian", "no_orgnr"},
		Applicable: numericApplicable,
		Checks: []Check{
			NumericCheck(0.5),
			PatternCheck("norwegian_registration_number_check", `^\d{9}$`, 0.75),
			LengthVarianceCheck("norwegian_length_variance", 0.1, 1.1),
			UniquenessCheck("norwegian_uniqueness", 0.8, -1, 1.0),
		},
	})

	r.Register(&Detector{
		TypeName:   "finnishregistrationnumber",
		ParentType: "nordicregistrationnumber",
		Keywords:   []string{"finnish", "y_tunnus"},
		Applicable: numericApplicable,
		Checks: []Check{
			NumericCheck(0.5),
			PatternCheck("finnish_registration_number_check", `^\d{7}-\d$`, 1.0),
			LengthVarianceCheck("finnish_length_variance", 0.01, 1.1),
			UniquenessCheck("finnish_uniqueness", 0.8, -1, 1.0),
		},
	})

	r.Register(&Detector{
		TypeName:   "danishregistrationnumber",
		ParentType: "nordicregistrationnumber",
		Keywords:   []string{"danish", "cvr"},
		Applicable: numericApplicable,
		Checks: []Check{
			NumericCheck(0.5),
			PatternCheck("danish_registration_number_check", `^\d{8}$`, 0.75),
			LengthVarianceCheck("danish_length_variance", 0.01, 1.1),
			UniquenessCheck("danish_uniqueness", 0.8, -1, 1.0),
		},
	})
}

func registerTextFamily(r *Registry) {
	textApplicable := anyTextLike

	r.Register(&Detector{
		TypeName:   "text",
		Checks:     []Check{StringCheck(0.5)},
		Applicable: textApplicable,
	})

	r.Register(&Detector{
		TypeName:   "name",
		ParentType: "text",
		Keywords:   []string{"name"},
		Applicable: textApplicable,
		Checks: []Check{
			newCheck("name_alpha_check", 1.0, func(values []string) float64 {
				return byPredicateCount(values, func(v string) bool {
					if v == "" {
						return false
					}
					for _, part := range strings.Fields(v) {
						for _, r := range part {
							if !isAlpha(r) {
								return false
							}
						}
					}
					return true
				})
			}),
			LengthCheck("name_length", 3, 50, 1.0),
		},
	})

	r.Register(&Detector{
		TypeName:   "companyname",
		ParentType: "text",
		Keywords:   []string{"company", "business", "organization"},
		Applicable: textApplicable,
		Checks: []Check{
			StringCheck(0.5),
			PatternCheck("company_name_pattern", `^[A-Za-z0-9\s&.,-]+$`, 1.5),
			LengthCheck("company_name_length", 3, 100, 1.0),
		},
	})

	r.Register(&Detector{
		TypeName:   "countryname",
		ParentType: "text",
		Keywords:   []string{"country", "nation", "state"},
		Applicable: textApplicable,
		Checks: []Check{
			StringCheck(0.5),
			PatternCheck("country_name_pattern", `^[A-Za-z\s-]+$`, 1.5),
			LengthCheck("country_name_length", 3, 50, 1.0),
		},
	})

	r.Register(&Detector{
		TypeName:   "textcategory",
		ParentType: "text",
		Keywords:   []string{"category", "type", "classification"},
		Applicable: textApplicable,
		Checks: []Check{
			StringCheck(0.5),
			PatternCheck("text_category_pattern", `^[A-Za-z\s]+$`, 1.5),
			LengthCheck("text_category_length", 3, 50, 1.0),
		},
	})

	r.Register(&Detector{
		TypeName:   "countrycode",
		ParentType: "text",
		Keywords:   []string{"country", "iso"},
		Applicable: textApplicable,
		Checks: []Check{
			StringCheck(0.5),
			PatternCheck("country_code", `^[A-Z]{2}$`, 2.0),
			LengthCheck("country_code_length", 2, 2, 1.5),
		},
	})

	r.Register(&Detector{
		TypeName:   "currencycode",
		ParentType: "text",
		Keywords:   []string{"currency", "iso4217"},
		Applicable: textApplicable,
		Checks: []Check{
			StringCheck(0.5),
			PatternCheck("currency_code", `^[A-Z]{3}$`, 2.0),
			LengthCheck("currency_code_length", 3, 3, 1.5),
		},
	})
}

func isAlpha(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
