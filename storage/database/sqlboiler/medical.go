package boiledrepos

import (
	"context"
	"time"

	"github.com/friendsofgo/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/medical"
)

const (
	hospitalsTable = "hospitals"
	doctorsTable   = "doctors"
	patientsTable  = "patients"
)

type (
	hospitalRow struct {
		ID        string    `boil:"id"`
		Name      string    `boil:"name"`
		Address   string    `boil:"address"`
		City      string    `boil:"city"`
		Phone     string    `boil:"phone"`
		Email     string    `boil:"email"`
		IsActive  bool      `boil:"is_active"`
		CreatedAt time.Time `boil:"created_at"`
		UpdatedAt time.Time `boil:"updated_at"`
	}

	doctorRow struct {
		ID              string      `boil:"id"`
		UserID          string      `boil:"user_id"`
		Name            string      `boil:"name"`
		Specialty       string      `boil:"specialty"`
		Qualification   string      `boil:"qualification"`
		HospitalID      null.String `boil:"hospital_id"`
		LicenseNumber   string      `boil:"license_number"`
		Phone           string      `boil:"phone"`
		Email           string      `boil:"email"`
		ExperienceYears int         `boil:"experience_years"`
		IsAvailable     bool        `boil:"is_available"`
		CreatedAt       time.Time   `boil:"created_at"`
		UpdatedAt       time.Time   `boil:"updated_at"`
	}

	patientRow struct {
		ID               string    `boil:"id"`
		UserID           string    `boil:"user_id"`
		ITSID            string    `boil:"its_id"`
		Name             string    `boil:"name"`
		DateOfBirth      null.Time `boil:"date_of_birth"`
		Gender           string    `boil:"gender"`
		BloodGroup       string    `boil:"blood_group"`
		Phone            string    `boil:"phone"`
		Address          string    `boil:"address"`
		EmergencyContact string    `boil:"emergency_contact"`
		MedicalHistory   string    `boil:"medical_history"`
		Allergies        string    `boil:"allergies"`
		CreatedAt        time.Time `boil:"created_at"`
		UpdatedAt        time.Time `boil:"updated_at"`
	}
)

func (r *hospitalRow) columns() []string {
	return []string{"id", "name", "address", "city", "phone", "email", "is_active", "created_at", "updated_at"}
}

func (r *hospitalRow) values() []interface{} {
	return []interface{}{r.ID, r.Name, r.Address, r.City, r.Phone, r.Email, r.IsActive, r.CreatedAt, r.UpdatedAt}
}

func (r *doctorRow) columns() []string {
	return []string{"id", "user_id", "name", "specialty", "qualification", "hospital_id", "license_number", "phone",
		"email", "experience_years", "is_available", "created_at", "updated_at"}
}

func (r *doctorRow) values() []interface{} {
	return []interface{}{r.ID, r.UserID, r.Name, r.Specialty, r.Qualification, r.HospitalID, r.LicenseNumber, r.Phone,
		r.Email, r.ExperienceYears, r.IsAvailable, r.CreatedAt, r.UpdatedAt}
}

func (r *patientRow) columns() []string {
	return []string{"id", "user_id", "its_id", "name", "date_of_birth", "gender", "blood_group", "phone", "address",
		"emergency_contact", "medical_history", "allergies", "created_at", "updated_at"}
}

func (r *patientRow) values() []interface{} {
	return []interface{}{r.ID, r.UserID, r.ITSID, r.Name, r.DateOfBirth, r.Gender, r.BloodGroup, r.Phone, r.Address,
		r.EmergencyContact, r.MedicalHistory, r.Allergies, r.CreatedAt, r.UpdatedAt}
}

type medicalRepository struct {
	db core.DB
}

var _ medical.Repository = (*medicalRepository)(nil) // interface compliance check

func NewMedicalRepository(db core.DB) *medicalRepository {
	return &medicalRepository{db: db}
}

// Hospitals

func (repo medicalRepository) boilHospital(h medical.Hospital) *hospitalRow {
	return &hospitalRow{
		ID:        h.ID,
		Name:      h.Name,
		Address:   h.Address,
		City:      h.City,
		Phone:     h.Phone,
		Email:     h.Email,
		IsActive:  h.IsActive,
		CreatedAt: h.CreatedAt.UTC(),
		UpdatedAt: h.UpdatedAt.UTC(),
	}
}

func (repo medicalRepository) unboilHospital(r *hospitalRow) medical.Hospital {
	return medical.Hospital{
		ID:        r.ID,
		Name:      r.Name,
		Address:   r.Address,
		City:      r.City,
		Phone:     r.Phone,
		Email:     r.Email,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (repo medicalRepository) CreateHospital(ctx context.Context, h medical.Hospital) (medical.Hospital, error) {
	if h.ID == "" {
		h.ID = core.NewID()
	}
	r := repo.boilHospital(h)
	if err := insert(ctx, repo.db, hospitalsTable, r); err != nil {
		return medical.Hospital{}, errors.Wrap(err, "inserting hospital")
	}
	return repo.unboilHospital(r), nil
}

func (repo medicalRepository) QueryHospitals(ctx context.Context, filter medical.HospitalFilter, ordering []core.DBOrdering) ([]medical.Hospital, error) {
	mods := []qm.QueryMod{qm.From(hospitalsTable)}
	mods = append(mods, search(filter.Search, "name", "city", "address")...)
	mods = append(mods, search(filter.City, "city")...)
	mods = append(mods, eqBool("is_active", filter.IsActive)...)
	mods = append(mods, orderBy(ordering, "", map[string]string{"name": "lower(name)", "city": "lower(city)"}, "lower(name) ASC"))

	var rows []*hospitalRow
	if err := newQuery(mods...).Bind(ctx, repo.db, &rows); err != nil {
		return nil, errors.Wrap(err, "selecting hospitals")
	}
	list := make([]medical.Hospital, 0, len(rows))
	for _, r := range rows {
		list = append(list, repo.unboilHospital(r))
	}
	return list, nil
}

func (repo medicalRepository) GetHospital(ctx context.Context, id string) (medical.Hospital, error) {
	r := new(hospitalRow)
	if err := findByID(ctx, repo.db, hospitalsTable, id, r); err != nil {
		return medical.Hospital{}, trap(err, medical.ErrHospitalNotFound, "selecting hospital")
	}
	return repo.unboilHospital(r), nil
}

func (repo medicalRepository) UpdateHospital(ctx context.Context, h medical.Hospital) (medical.Hospital, error) {
	r := repo.boilHospital(h)
	if err := update(ctx, repo.db, hospitalsTable, r); err != nil {
		return medical.Hospital{}, trap(err, medical.ErrHospitalNotFound, "updating hospital")
	}
	return repo.unboilHospital(r), nil
}

// DeleteHospital relies on the foreign key to detach the doctors of the hospital.
func (repo medicalRepository) DeleteHospital(ctx context.Context, id string) error {
	return trap(deleteByID(ctx, repo.db, hospitalsTable, id), medical.ErrHospitalNotFound, "deleting hospital")
}

// Doctors

func (repo medicalRepository) boilDoctor(d medical.Doctor) *doctorRow {
	return &doctorRow{
		ID:              d.ID,
		UserID:          d.UserID,
		Name:            d.Name,
		Specialty:       d.Specialty,
		Qualification:   d.Qualification,
		HospitalID:      nullString(d.HospitalID),
		LicenseNumber:   d.LicenseNumber,
		Phone:           d.Phone,
		Email:           d.Email,
		ExperienceYears: d.ExperienceYears,
		IsAvailable:     d.IsAvailable,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}
}

func (repo medicalRepository) unboilDoctor(r *doctorRow) medical.Doctor {
	return medical.Doctor{
		ID:              r.ID,
		UserID:          r.UserID,
		Name:            r.Name,
		Specialty:       r.Specialty,
		Qualification:   r.Qualification,
		HospitalID:      r.HospitalID.String,
		LicenseNumber:   r.LicenseNumber,
		Phone:           r.Phone,
		Email:           r.Email,
		ExperienceYears: r.ExperienceYears,
		IsAvailable:     r.IsAvailable,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func (repo medicalRepository) CreateDoctor(ctx context.Context, d medical.Doctor) (medical.Doctor, error) {
	if d.ID == "" {
		d.ID = core.NewID()
	}
	r := repo.boilDoctor(d)
	if err := insert(ctx, repo.db, doctorsTable, r); err != nil {
		if _, ok := violatedConstraint(err); ok {
			return medical.Doctor{}, medical.ErrDoctorExists
		}
		return medical.Doctor{}, errors.Wrap(err, "inserting doctor")
	}
	return repo.unboilDoctor(r), nil
}

func (repo medicalRepository) QueryDoctors(ctx context.Context, filter medical.DoctorFilter, ordering []core.DBOrdering) ([]medical.Doctor, error) {
	mods := []qm.QueryMod{qm.From(doctorsTable)}
	mods = append(mods, search(filter.Search, "name", "specialty", "qualification")...)
	mods = append(mods, search(filter.Specialty, "specialty")...)
	mods = append(mods, eqID("hospital_id", filter.HospitalID)...)
	mods = append(mods, eqBool("is_available", filter.IsAvailable)...)
	mods = append(mods, orderBy(ordering, "", map[string]string{"name": "lower(name)", "specialty": "lower(specialty)"}, "lower(name) ASC"))

	var rows []*doctorRow
	if err := newQuery(mods...).Bind(ctx, repo.db, &rows); err != nil {
		return nil, errors.Wrap(err, "selecting doctors")
	}
	list := make([]medical.Doctor, 0, len(rows))
	for _, r := range rows {
		list = append(list, repo.unboilDoctor(r))
	}
	return list, nil
}

func (repo medicalRepository) GetDoctor(ctx context.Context, id string) (medical.Doctor, error) {
	r := new(doctorRow)
	if err := findByID(ctx, repo.db, doctorsTable, id, r); err != nil {
		return medical.Doctor{}, trap(err, medical.ErrDoctorNotFound, "selecting doctor")
	}
	return repo.unboilDoctor(r), nil
}

func (repo medicalRepository) UpdateDoctor(ctx context.Context, d medical.Doctor) (medical.Doctor, error) {
	r := repo.boilDoctor(d)
	if err := update(ctx, repo.db, doctorsTable, r); err != nil {
		return medical.Doctor{}, trap(err, medical.ErrDoctorNotFound, "updating doctor")
	}
	return repo.unboilDoctor(r), nil
}

func (repo medicalRepository) DeleteDoctor(ctx context.Context, id string) error {
	return trap(deleteByID(ctx, repo.db, doctorsTable, id), medical.ErrDoctorNotFound, "deleting doctor")
}

// Patients

func (repo medicalRepository) boilPatient(p medical.Patient) *patientRow {
	return &patientRow{
		ID:               p.ID,
		UserID:           p.UserID,
		ITSID:            p.ITSID,
		Name:             p.Name,
		DateOfBirth:      nullTimePtr(p.DateOfBirth),
		Gender:           p.Gender,
		BloodGroup:       p.BloodGroup,
		Phone:            p.Phone,
		Address:          p.Address,
		EmergencyContact: p.EmergencyContact,
		MedicalHistory:   p.MedicalHistory,
		Allergies:        p.Allergies,
		CreatedAt:        p.CreatedAt.UTC(),
		UpdatedAt:        p.UpdatedAt.UTC(),
	}
}

func (repo medicalRepository) unboilPatient(r *patientRow) medical.Patient {
	return medical.Patient{
		ID:               r.ID,
		UserID:           r.UserID,
		ITSID:            r.ITSID,
		Name:             r.Name,
		DateOfBirth:      r.DateOfBirth.Ptr(),
		Gender:           r.Gender,
		BloodGroup:       r.BloodGroup,
		Phone:            r.Phone,
		Address:          r.Address,
		EmergencyContact: r.EmergencyContact,
		MedicalHistory:   r.MedicalHistory,
		Allergies:        r.Allergies,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func (repo medicalRepository) CreatePatient(ctx context.Context, p medical.Patient) (medical.Patient, error) {
	if p.ID == "" {
		p.ID = core.NewID()
	}
	r := repo.boilPatient(p)
	if err := insert(ctx, repo.db, patientsTable, r); err != nil {
		if _, ok := violatedConstraint(err); ok {
			return medical.Patient{}, medical.ErrPatientExists
		}
		return medical.Patient{}, errors.Wrap(err, "inserting patient")
	}
	return repo.unboilPatient(r), nil
}

func (repo medicalRepository) QueryPatients(ctx context.Context, filter medical.PatientFilter, ordering []core.DBOrdering) ([]medical.Patient, error) {
	mods := []qm.QueryMod{qm.From(patientsTable)}
	mods = append(mods, search(filter.Search, "name", "its_id", "phone")...)
	mods = append(mods, eq("gender", filter.Gender)...)
	mods = append(mods, eq("blood_group", filter.BloodGroup)...)
	mods = append(mods, eqID("user_id", filter.UserID)...)
	mods = append(mods, orderBy(ordering, "", map[string]string{"name": "lower(name)"}, "lower(name) ASC"))

	var rows []*patientRow
	if err := newQuery(mods...).Bind(ctx, repo.db, &rows); err != nil {
		return nil, errors.Wrap(err, "selecting patients")
	}
	list := make([]medical.Patient, 0, len(rows))
	for _, r := range rows {
		list = append(list, repo.unboilPatient(r))
	}
	return list, nil
}

func (repo medicalRepository) GetPatient(ctx context.Context, id string) (medical.Patient, error) {
	r := new(patientRow)
	if err := findByID(ctx, repo.db, patientsTable, id, r); err != nil {
		return medical.Patient{}, trap(err, medical.ErrPatientNotFound, "selecting patient")
	}
	return repo.unboilPatient(r), nil
}

func (repo medicalRepository) UpdatePatient(ctx context.Context, p medical.Patient) (medical.Patient, error) {
	r := repo.boilPatient(p)
	if err := update(ctx, repo.db, patientsTable, r); err != nil {
		return medical.Patient{}, trap(err, medical.ErrPatientNotFound, "updating patient")
	}
	return repo.unboilPatient(r), nil
}

func (repo medicalRepository) DeletePatient(ctx context.Context, id string) error {
	return trap(deleteByID(ctx, repo.db, patientsTable, id), medical.ErrPatientNotFound, "deleting patient")
}
