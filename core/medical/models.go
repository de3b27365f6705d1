package medical

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/umoorsehhat/sehhat/core"
)

var (
	HospitalOrderingFields = []string{"name", "city", "created_at"}
	DoctorOrderingFields   = []string{"name", "specialty", "experience_years", "created_at"}
	PatientOrderingFields  = []string{"name", "its_id", "created_at"}
)

type (
	Hospital struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Address   string    `json:"address"`
		City      string    `json:"city"`
		Phone     string    `json:"phone"`
		Email     string    `json:"email"`
		IsActive  bool      `json:"is_active"`
		CreatedAt time.Time `json:"created_at"` // UTC
		UpdatedAt time.Time `json:"updated_at"` // UTC
	}

	NewHospital struct {
		Name     string `json:"name" validate:"required,notblank,max=200"`
		Address  string `json:"address"`
		City     string `json:"city" validate:"max=100"`
		Phone    string `json:"phone" validate:"max=30"`
		Email    string `json:"email" validate:"omitempty,email"`
		IsActive *bool  `json:"is_active"`
	}

	HospitalFilter struct {
		Search   string `query:"search"`
		City     string `query:"city"`
		IsActive *bool  `query:"is_active"`
	}

	Doctor struct {
		ID              string    `json:"id"`
		UserID          string    `json:"user_id"`
		Name            string    `json:"name"`
		Specialty       string    `json:"specialty"`
		Qualification   string    `json:"qualification"`
		HospitalID      string    `json:"hospital_id"`
		LicenseNumber   string    `json:"license_number"`
		Phone           string    `json:"phone"`
		Email           string    `json:"email"`
		ExperienceYears int       `json:"experience_years"`
		IsAvailable     bool      `json:"is_available"`
		CreatedAt       time.Time `json:"created_at"` // UTC
		UpdatedAt       time.Time `json:"updated_at"` // UTC
	}

	NewDoctor struct {
		UserID          string `json:"user_id" validate:"required"`
		Specialty       string `json:"specialty" validate:"required,notblank,max=100"`
		Qualification   string `json:"qualification" validate:"max=200"`
		HospitalID      string `json:"hospital_id"`
		LicenseNumber   string `json:"license_number" validate:"max=50"`
		Phone           string `json:"phone" validate:"max=30"`
		ExperienceYears int    `json:"experience_years" validate:"gte=0,lte=80"`
		IsAvailable     *bool  `json:"is_available"`
	}

	DoctorFilter struct {
		Search      string `query:"search"`
		Specialty   string `query:"specialty"`
		HospitalID  string `query:"hospital_id"`
		IsAvailable *bool  `query:"is_available"`
	}

	Patient struct {
		ID               string     `json:"id"`
		UserID           string     `json:"user_id"`
		ITSID            string     `json:"its_id"`
		Name             string     `json:"name"`
		DateOfBirth      *time.Time `json:"date_of_birth"`
		Gender           string     `json:"gender"`
		BloodGroup       string     `json:"blood_group"`
		Phone            string     `json:"phone"`
		Address          string     `json:"address"`
		EmergencyContact string     `json:"emergency_contact"`
		MedicalHistory   string     `json:"medical_history"`
		Allergies        string     `json:"allergies"`
		CreatedAt        time.Time  `json:"created_at"` // UTC
		UpdatedAt        time.Time  `json:"updated_at"` // UTC
	}

	NewPatient struct {
		UserID           string     `json:"user_id"`
		ITSID            string     `json:"its_id" validate:"omitempty,itsid"`
		Name             string     `json:"name" validate:"max=200"`
		DateOfBirth      *time.Time `json:"date_of_birth"`
		Gender           string     `json:"gender" validate:"omitempty,oneof=male female"`
		BloodGroup       string     `json:"blood_group" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
		Phone            string     `json:"phone" validate:"max=30"`
		Address          string     `json:"address"`
		EmergencyContact string     `json:"emergency_contact" validate:"max=200"`
		MedicalHistory   string     `json:"medical_history"`
		Allergies        string     `json:"allergies"`
	}

	PatientFilter struct {
		Search     string `query:"search"`
		Gender     string `query:"gender"`
		BloodGroup string `query:"blood_group"`
		UserID     string `query:"-"`
	}
)

func (nh *NewHospital) Validate(validate *validator.Validate) error {
	nh.Name = core.CleanString(nh.Name)
	nh.Address = core.CleanString(nh.Address)
	nh.City = core.CleanString(nh.City)
	nh.Phone = core.CleanString(nh.Phone)
	nh.Email = core.CleanString(nh.Email, true /* lower */)
	return validate.Struct(nh)
}

func (nd *NewDoctor) Validate(validate *validator.Validate) error {
	nd.UserID = core.CleanString(nd.UserID)
	nd.Specialty = core.CleanString(nd.Specialty)
	nd.Qualification = core.CleanString(nd.Qualification)
	nd.LicenseNumber = core.CleanString(nd.LicenseNumber)
	nd.Phone = core.CleanString(nd.Phone)
	return validate.Struct(nd)
}

func (np *NewPatient) Validate(validate *validator.Validate) error {
	np.ITSID = core.CleanString(np.ITSID)
	np.Name = core.CleanString(np.Name)
	np.Gender = core.CleanString(np.Gender, true /* lower */)
	np.BloodGroup = strings.ToUpper(core.CleanString(np.BloodGroup))
	np.Phone = core.CleanString(np.Phone)
	np.Address = core.CleanString(np.Address)
	np.EmergencyContact = core.CleanString(np.EmergencyContact)
	return validate.Struct(np)
}
