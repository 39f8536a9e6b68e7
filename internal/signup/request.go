package signup

import (
	"strings"

	"github.com/marcus/soilnet/internal/phone"
	"github.com/marcus/soilnet/internal/wizard"
)

// uploadFields are the wizard fields sent as files.
var uploadFields = []string{
	wizard.FieldAvatar,
	wizard.FieldEducationalDoc,
	wizard.FieldProfessionalDoc,
	wizard.FieldExperienceDoc,
	wizard.FieldGovernmentID,
}

// detailFields are copied into Request.Details when present.
var detailFields = []string{
	wizard.FieldQualification,
	wizard.FieldSpecialization,
	wizard.FieldExperienceYears,
	wizard.FieldFarmName,
	wizard.FieldFarmSize,
	wizard.FieldCrops,
}

// RequestFromState builds a Request from a completed wizard.
func RequestFromState(role Role, s wizard.State) Request {
	v := func(name string) string { return strings.TrimSpace(s.Value(name)) }

	req := Request{
		Role:     role,
		Email:    v(wizard.FieldEmail),
		Password: s.Value(wizard.FieldPassword),
		FullName: v(wizard.FieldFullName),
		Phone:    phone.Join(v(wizard.FieldPhoneCode), v(wizard.FieldPhone)),
		Location: Location{
			Country:  strings.ToUpper(v(wizard.FieldCountry)),
			Province: v(wizard.FieldProvince),
			City:     v(wizard.FieldCity),
			Address:  v(wizard.FieldAddress),
		},
		Details: map[string]string{},
		Files:   map[string]string{},
	}
	for _, f := range detailFields {
		if val := v(f); val != "" {
			req.Details[f] = val
		}
	}
	for _, f := range uploadFields {
		if path := v(f); path != "" {
			req.Files[f] = path
		}
	}
	return req
}
