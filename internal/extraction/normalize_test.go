package extraction

import (
	"testing"

	"ghl-extractor-backend/internal/models"
)

func TestNormalize(t *testing.T) {
	testCases := []struct {
		name    string
		field   models.ExtractionField
		raw     interface{}
		want    string
		wantWhy string
	}{
		{"nil", models.ExtractionField{FieldType: models.FieldText}, nil, "", ReasonEmptyValue},
		{"placeholder", models.ExtractionField{FieldType: models.FieldText}, "N/A", "", ReasonEmptyValue},
		{"text trimmed", models.ExtractionField{FieldType: models.FieldText}, "  Acme Corp ", "Acme Corp", ""},
		{"number float", models.ExtractionField{FieldType: models.FieldNumber}, 42.5, "42.5", ""},
		{"number currency", models.ExtractionField{FieldType: models.FieldNumber}, "$1,200", "1200", ""},
		{"number invalid", models.ExtractionField{FieldType: models.FieldNumber}, "a lot", "", ReasonInvalidValue},
		{"date iso", models.ExtractionField{FieldType: models.FieldDate}, "2024-03-15", "2024-03-15", ""},
		{"date us", models.ExtractionField{FieldType: models.FieldDate}, "03/15/2024", "2024-03-15", ""},
		{"date long", models.ExtractionField{FieldType: models.FieldDate}, "March 15, 2024", "2024-03-15", ""},
		{"date rfc3339", models.ExtractionField{FieldType: models.FieldDate}, "2024-03-15T10:00:00Z", "2024-03-15", ""},
		{"date invalid", models.ExtractionField{FieldType: models.FieldDate}, "next tuesday", "", ReasonInvalidValue},
		{"email lowercased", models.ExtractionField{FieldType: models.FieldEmail}, "Ada@Example.COM", "ada@example.com", ""},
		{"email invalid", models.ExtractionField{FieldType: models.FieldEmail}, "not-an-email", "", ReasonInvalidValue},
		{"email no domain dot", models.ExtractionField{FieldType: models.FieldEmail}, "ada@localhost", "", ReasonInvalidValue},
		{"phone formatted", models.ExtractionField{FieldType: models.FieldPhone}, "+1 (555) 123-4567", "+15551234567", ""},
		{"phone too short", models.ExtractionField{FieldType: models.FieldPhone}, "123", "", ReasonInvalidValue},
		{"bool native", models.ExtractionField{FieldType: models.FieldBoolean}, true, "true", ""},
		{"bool word", models.ExtractionField{FieldType: models.FieldBoolean}, "No", "false", ""},
		{"bool invalid", models.ExtractionField{FieldType: models.FieldBoolean}, "maybe", "", ReasonInvalidValue},
		{"select canonical", models.ExtractionField{FieldType: models.FieldSelect, PicklistOptions: []string{"Small", "Large"}}, "large", "Large", ""},
		{"select unknown", models.ExtractionField{FieldType: models.FieldSelect, PicklistOptions: []string{"Small", "Large"}}, "medium", "", ReasonInvalidValue},
		{"select without options", models.ExtractionField{FieldType: models.FieldSelect}, "anything", "anything", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, why := Normalize(tc.field, tc.raw)
			if got != tc.want || why != tc.wantWhy {
				t.Errorf("Normalize(%v) = (%q, %q), want (%q, %q)", tc.raw, got, why, tc.want, tc.wantWhy)
			}
		})
	}
}
