package inmemdb

import (
	"context"

	"github.com/samber/lo"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/medical"
)

type medicalRepository struct {
	db *medicalTables
}

var _ medical.Repository = (*medicalRepository)(nil) // interface compliance check

func NewMedicalRepository(db *DB) *medicalRepository {
	return &medicalRepository{db: db.medical}
}

// Hospitals

func (repo *medicalRepository) CreateHospital(ctx context.Context, h medical.Hospital) (medical.Hospital, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	h.ID = ensureID(h.ID)
	repo.db.hospitals[h.ID] = &h
	return h, nil
}

func (repo *medicalRepository) QueryHospitals(ctx context.Context, filter medical.HospitalFilter, ordering []core.DBOrdering) ([]medical.Hospital, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	list := lo.Filter(rows(repo.db.hospitals), func(h medical.Hospital, _ int) bool {
		switch {
		case !matches(filter.Search, h.Name, h.City, h.Address):
			return false
		case filter.City != "" && !matches(filter.City, h.City):
			return false
		case filter.IsActive != nil && h.IsActive != *filter.IsActive:
			return false
		}
		return true
	})
	orderBy(list, ordering, []core.DBOrdering{{Field: "name", Ascending: true}}, func(h medical.Hospital, field string) interface{} {
		switch field {
		case "name":
			return h.Name
		case "city":
			return h.City
		default:
			return h.CreatedAt
		}
	})
	return list, nil
}

func (repo *medicalRepository) GetHospital(ctx context.Context, id string) (medical.Hospital, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return getRow(repo.db.hospitals, id, medical.ErrHospitalNotFound)
}

func (repo *medicalRepository) UpdateHospital(ctx context.Context, h medical.Hospital) (medical.Hospital, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	return replaceRow(repo.db.hospitals, h.ID, h, medical.ErrHospitalNotFound)
}

func (repo *medicalRepository) DeleteHospital(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := deleteRow(repo.db.hospitals, id, medical.ErrHospitalNotFound); err != nil {
		return err
	}
	for _, d := range repo.db.doctors {
		if d.HospitalID == id {
			d.HospitalID = ""
		}
	}
	return nil
}

// Doctors

func (repo *medicalRepository) CreateDoctor(ctx context.Context, d medical.Doctor) (medical.Doctor, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, prev := range repo.db.doctors {
		if prev.UserID == d.UserID {
			return medical.Doctor{}, medical.ErrDoctorExists
		}
	}
	d.ID = ensureID(d.ID)
	repo.db.doctors[d.ID] = &d
	return d, nil
}

func (repo *medicalRepository) QueryDoctors(ctx context.Context, filter medical.DoctorFilter, ordering []core.DBOrdering) ([]medical.Doctor, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	list := lo.Filter(rows(repo.db.doctors), func(d medical.Doctor, _ int) bool {
		switch {
		case !matches(filter.Search, d.Name, d.Specialty, d.Qualification):
			return false
		case filter.Specialty != "" && !matches(filter.Specialty, d.Specialty):
			return false
		case filter.HospitalID != "" && d.HospitalID != filter.HospitalID:
			return false
		case filter.IsAvailable != nil && d.IsAvailable != *filter.IsAvailable:
			return false
		}
		return true
	})
	orderBy(list, ordering, []core.DBOrdering{{Field: "name", Ascending: true}}, func(d medical.Doctor, field string) interface{} {
		switch field {
		case "name":
			return d.Name
		case "specialty":
			return d.Specialty
		case "experience_years":
			return d.ExperienceYears
		default:
			return d.CreatedAt
		}
	})
	return list, nil
}

func (repo *medicalRepository) GetDoctor(ctx context.Context, id string) (medical.Doctor, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return getRow(repo.db.doctors, id, medical.ErrDoctorNotFound)
}

func (repo *medicalRepository) UpdateDoctor(ctx context.Context, d medical.Doctor) (medical.Doctor, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	return replaceRow(repo.db.doctors, d.ID, d, medical.ErrDoctorNotFound)
}

func (repo *medicalRepository) DeleteDoctor(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	return deleteRow(repo.db.doctors, id, medical.ErrDoctorNotFound)
}

// Patients

func (repo *medicalRepository) CreatePatient(ctx context.Context, p medical.Patient) (medical.Patient, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, prev := range repo.db.patients {
		if prev.UserID == p.UserID {
			return medical.Patient{}, medical.ErrPatientExists
		}
	}
	p.ID = ensureID(p.ID)
	repo.db.patients[p.ID] = &p
	return p, nil
}

func (repo *medicalRepository) QueryPatients(ctx context.Context, filter medical.PatientFilter, ordering []core.DBOrdering) ([]medical.Patient, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	list := lo.Filter(rows(repo.db.patients), func(p medical.Patient, _ int) bool {
		switch {
		case !matches(filter.Search, p.Name, p.ITSID, p.Phone):
			return false
		case filter.Gender != "" && p.Gender != filter.Gender:
			return false
		case filter.BloodGroup != "" && p.BloodGroup != filter.BloodGroup:
			return false
		case filter.UserID != "" && p.UserID != filter.UserID:
			return false
		}
		return true
	})
	orderBy(list, ordering, []core.DBOrdering{{Field: "name", Ascending: true}}, func(p medical.Patient, field string) interface{} {
		switch field {
		case "name":
			return p.Name
		case "its_id":
			return p.ITSID
		default:
			return p.CreatedAt
		}
	})
	return list, nil
}

func (repo *medicalRepository) GetPatient(ctx context.Context, id string) (medical.Patient, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return getRow(repo.db.patients, id, medical.ErrPatientNotFound)
}

func (repo *medicalRepository) UpdatePatient(ctx context.Context, p medical.Patient) (medical.Patient, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	return replaceRow(repo.db.patients, p.ID, p, medical.ErrPatientNotFound)
}

func (repo *medicalRepository) DeletePatient(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	return deleteRow(repo.db.patients, id, medical.ErrPatientNotFound)
}
