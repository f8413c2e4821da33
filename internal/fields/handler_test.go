package fields

import (
	"testing"

	"ghl-extractor-backend/internal/models"
)

func TestCreateFieldRequest_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		req     CreateFieldRequest
		wantErr bool
	}{
		{"standard field", CreateFieldRequest{FieldName: "email", TargetGHLKey: "email", FieldType: models.FieldEmail}, false},
		{"custom field", CreateFieldRequest{FieldName: "budget", TargetGHLKey: "cf-123", IsCustomField: true, FieldType: models.FieldNumber}, false},
		{"missing name", CreateFieldRequest{TargetGHLKey: "email"}, true},
		{"missing key", CreateFieldRequest{FieldName: "email"}, true},
		{"unknown standard key", CreateFieldRequest{FieldName: "color", TargetGHLKey: "favoriteColor"}, true},
		{"bad policy", CreateFieldRequest{FieldName: "email", TargetGHLKey: "email", OverwritePolicy: "sometimes"}, true},
		{"bad type", CreateFieldRequest{FieldName: "email", TargetGHLKey: "email", FieldType: "blob"}, true},
		{"select without options", CreateFieldRequest{FieldName: "size", TargetGHLKey: "cf-size", IsCustomField: true, FieldType: models.FieldSelect}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestCreateFieldRequest_Defaults(t *testing.T) {
	req := CreateFieldRequest{FieldName: " first name ", TargetGHLKey: "firstName"}
	if err := req.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if req.FieldType != models.FieldText || req.OverwritePolicy != models.PolicyOnlyEmpty {
		t.Errorf("defaults = %q / %q", req.FieldType, req.OverwritePolicy)
	}
	if req.FieldName != "first name" || req.PicklistOptions == nil {
		t.Errorf("normalized = %+v", req)
	}
}

func TestUpdateFieldRequest_Apply(t *testing.T) {
	never := models.PolicyNever
	active := false
	req := UpdateFieldRequest{OverwritePolicy: &never, IsActive: &active}

	current := models.ExtractionField{FieldName: "email", TargetGHLKey: "email", FieldType: models.FieldEmail, OverwritePolicy: models.PolicyAlways, IsActive: true}
	got := req.apply(current)

	if got.OverwritePolicy != models.PolicyNever || got.IsActive {
		t.Errorf("apply = %+v", got)
	}
	if got.FieldName != "email" || got.FieldType != models.FieldEmail {
		t.Error("untouched members changed")
	}
}
