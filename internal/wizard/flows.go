package wizard

import "github.com/marcus/soilnet/internal/validate"

// Field names shared by the flows and by the submission code that reads
// their values.
const (
	FieldFullName        = "full_name"
	FieldEmail           = "email"
	FieldPhoneCode       = "phone_code"
	FieldPhone           = "phone"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirm_password"
	FieldCountry         = "country"
	FieldProvince        = "province"
	FieldCity            = "city"
	FieldAddress         = "address"
	FieldQualification   = "qualification"
	FieldSpecialization  = "specialization"
	FieldExperienceYears = "experience_years"
	FieldFarmName        = "farm_name"
	FieldFarmSize        = "farm_size"
	FieldCrops           = "crops"
	FieldAvatar          = "avatar"
	FieldEducationalDoc  = "educational_doc"
	FieldProfessionalDoc = "professional_doc"
	FieldExperienceDoc   = "experience_doc"
	FieldGovernmentID    = "government_id"
)

var (
	imageExts    = []string{".jpg", ".jpeg", ".png", ".webp"}
	documentExts = []string{".pdf", ".jpg", ".jpeg", ".png"}
)

func personalFields() []validate.Field {
	return []validate.Field{
		{Name: FieldFullName, Label: "Full name", Kind: validate.KindName},
		{Name: FieldEmail, Label: "Email", Kind: validate.KindEmail},
		{Name: FieldPhoneCode, Label: "Country code", Kind: validate.KindText, Required: true, MaxLength: 5},
		{Name: FieldPhone, Label: "Phone number", Kind: validate.KindPhone, CodeField: FieldPhoneCode},
	}
}

func credentialFields() []validate.Field {
	return []validate.Field{
		{Name: FieldPassword, Label: "Password", Kind: validate.KindPassword},
		{Name: FieldConfirmPassword, Label: "Confirm password", Kind: validate.KindConfirm, Ref: FieldPassword},
	}
}

func locationFields() []validate.Field {
	return []validate.Field{
		{Name: FieldCountry, Label: "Country", Kind: validate.KindText, Required: true, MaxLength: 2},
		{Name: FieldProvince, Label: "Province", Kind: validate.KindText, Required: true, MaxLength: 60},
		{Name: FieldCity, Label: "City", Kind: validate.KindText, Required: true, MaxLength: 60},
		{Name: FieldAddress, Label: "Address", Kind: validate.KindText, MaxLength: 200},
	}
}

func farmFields() []validate.Field {
	return []validate.Field{
		{Name: FieldFarmName, Label: "Farm name", Kind: validate.KindText, Required: true, MaxLength: 80},
		{Name: FieldFarmSize, Label: "Farm size (acres)", Kind: validate.KindNumber, Required: true, Max: 100_000},
		{Name: FieldCrops, Label: "Crops", Kind: validate.KindText, MaxLength: 200},
	}
}

// ConsultantSignup is the four-step consultant registration.
var ConsultantSignup = &Flow{
	Name: "consultant-signup",
	Steps: []StepDef{
		{Title: "Personal information", Fields: personalFields()},
		{Title: "Account credentials", Fields: credentialFields()},
		{Title: "Professional details", Fields: append([]validate.Field{
			{Name: FieldQualification, Label: "Qualification", Kind: validate.KindText, Required: true, MaxLength: 120},
			{Name: FieldSpecialization, Label: "Specialization", Kind: validate.KindText, MaxLength: 120},
			{Name: FieldExperienceYears, Label: "Years of experience", Kind: validate.KindNumber, Required: true, Max: 60},
			{Name: FieldAvatar, Label: "Profile photo", Kind: validate.KindFile, Extensions: imageExts},
			{Name: FieldEducationalDoc, Label: "Educational document", Kind: validate.KindFile, Required: true, Extensions: documentExts},
			{Name: FieldProfessionalDoc, Label: "Professional certificate", Kind: validate.KindFile, Extensions: documentExts},
			{Name: FieldExperienceDoc, Label: "Experience letter", Kind: validate.KindFile, Extensions: documentExts},
			{Name: FieldGovernmentID, Label: "Government ID", Kind: validate.KindFile, Required: true, Extensions: documentExts},
		}, locationFields()...)},
		{Title: "Review", Review: true},
	},
}

// FarmerSignup is the two-step farmer self-registration.
var FarmerSignup = &Flow{
	Name: "farmer-signup",
	Steps: []StepDef{
		{Title: "Account", Fields: append(personalFields(), credentialFields()...)},
		{Title: "Farm details", Fields: append(append(farmFields(), locationFields()...),
			validate.Field{Name: FieldAvatar, Label: "Profile photo", Kind: validate.KindFile, Extensions: imageExts})},
	},
}

// FarmerCreate is the three-step form consultants use to add a farmer.
var FarmerCreate = &Flow{
	Name: "farmer-create",
	Steps: []StepDef{
		{Title: "Farmer information", Fields: personalFields()},
		{Title: "Farm details", Fields: append(farmFields(), locationFields()...)},
		{Title: "Review", Review: true},
	},
}

// Flows lists every flow by name.
var Flows = map[string]*Flow{
	ConsultantSignup.Name: ConsultantSignup,
	FarmerSignup.Name:     FarmerSignup,
	FarmerCreate.Name:     FarmerCreate,
}
