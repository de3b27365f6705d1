// Package medical keeps the medical directory: hospitals, doctors and patients.
package medical

import (
	"context"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/audit"
	"github.com/umoorsehhat/sehhat/core/user"
)

var (
	ErrHospitalNotFound = core.NewNotFoundError("hospital")
	ErrDoctorNotFound   = core.NewNotFoundError("doctor")
	ErrPatientNotFound  = core.NewNotFoundError("patient")
	ErrDoctorExists     = errors.New("this user already has a doctor profile")
	ErrPatientExists    = errors.New("this user already has a patient record")
)

type (
	Repository interface {
		CreateHospital(ctx context.Context, h Hospital) (Hospital, error)
		QueryHospitals(ctx context.Context, filter HospitalFilter, ordering []core.DBOrdering) ([]Hospital, error)
		GetHospital(ctx context.Context, id string) (Hospital, error)
		UpdateHospital(ctx context.Context, h Hospital) (Hospital, error)
		DeleteHospital(ctx context.Context, id string) error

		// CreateDoctor returns ErrDoctorExists when the user already has a doctor profile.
		CreateDoctor(ctx context.Context, d Doctor) (Doctor, error)
		QueryDoctors(ctx context.Context, filter DoctorFilter, ordering []core.DBOrdering) ([]Doctor, error)
		GetDoctor(ctx context.Context, id string) (Doctor, error)
		UpdateDoctor(ctx context.Context, d Doctor) (Doctor, error)
		DeleteDoctor(ctx context.Context, id string) error

		// CreatePatient returns ErrPatientExists when the user already has a patient record.
		CreatePatient(ctx context.Context, p Patient) (Patient, error)
		QueryPatients(ctx context.Context, filter PatientFilter, ordering []core.DBOrdering) ([]Patient, error)
		GetPatient(ctx context.Context, id string) (Patient, error)
		UpdatePatient(ctx context.Context, p Patient) (Patient, error)
		DeletePatient(ctx context.Context, id string) error
	}

	Service struct {
		repo    Repository
		users   *user.Service
		auditor audit.Recorder
	}
)

func NewService(repo Repository, users *user.Service, auditor audit.Recorder) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(users, "users"),
		vala.IsNotNil(auditor, "auditor"),
	).CheckAndPanic()

	return &Service{repo: repo, users: users, auditor: auditor}
}

// CanManageDirectory reports whether usr may edit hospitals and doctors.
func CanManageDirectory(usr user.User) bool {
	return usr.IsAdmin() || usr.Role == user.RoleAamil
}

// CanSeePatients reports whether usr may see every patient record.
func CanSeePatients(usr user.User) bool {
	return usr.IsStaff() || usr.IsDoctor()
}

// Hospitals

func (svc *Service) CreateHospital(ctx context.Context, nh NewHospital) (Hospital, error) {
	now := core.NowFunc()
	h, err := svc.repo.CreateHospital(ctx, Hospital{
		ID:        core.NewID(),
		Name:      nh.Name,
		Address:   nh.Address,
		City:      nh.City,
		Phone:     nh.Phone,
		Email:     nh.Email,
		IsActive:  nh.IsActive == nil || *nh.IsActive,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Hospital{}, errors.Wrap(err, "creating hospital")
	}
	return h, svc.record(ctx, audit.ActionCreate, "hospital", h.ID)
}

func (svc *Service) QueryHospitals(ctx context.Context, filter HospitalFilter, ordering []core.DBOrdering) ([]Hospital, error) {
	filter.Search = core.CleanString(filter.Search)
	return svc.repo.QueryHospitals(ctx, filter, core.AllowedOrderings(ordering, HospitalOrderingFields...))
}

func (svc *Service) GetHospital(ctx context.Context, id string) (Hospital, error) {
	return svc.repo.GetHospital(ctx, id)
}

func (svc *Service) UpdateHospital(ctx context.Context, id string, nh NewHospital) (Hospital, error) {
	h, err := svc.repo.GetHospital(ctx, id)
	if err != nil {
		return Hospital{}, err
	}
	h.Name, h.Address, h.City, h.Phone, h.Email = nh.Name, nh.Address, nh.City, nh.Phone, nh.Email
	if nh.IsActive != nil {
		h.IsActive = *nh.IsActive
	}
	h.UpdatedAt = core.NowFunc()
	if h, err = svc.repo.UpdateHospital(ctx, h); err != nil {
		return Hospital{}, errors.Wrap(err, "updating hospital")
	}
	return h, svc.record(ctx, audit.ActionUpdate, "hospital", h.ID)
}

func (svc *Service) DeleteHospital(ctx context.Context, id string) error {
	if err := svc.repo.DeleteHospital(ctx, id); err != nil {
		return err
	}
	return svc.record(ctx, audit.ActionDelete, "hospital", id)
}

// Doctors

func (svc *Service) checkHospital(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if _, err := svc.repo.GetHospital(ctx, id); err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(err, core.FieldError{Field: "hospital_id", Error: err.Error()})
		}
		return err
	}
	return nil
}

// CreateDoctor links a doctor profile to a user holding the doctor role.
func (svc *Service) CreateDoctor(ctx context.Context, nd NewDoctor) (Doctor, error) {
	usr, err := svc.users.GetByID(ctx, nd.UserID)
	if err != nil {
		if core.IsNotFound(err) {
			return Doctor{}, core.NewValidationError(err, core.FieldError{Field: "user_id", Error: err.Error()})
		}
		return Doctor{}, err
	}
	if !usr.IsDoctor() {
		return Doctor{}, core.NewValidationError(nil, core.FieldError{Field: "user_id", Error: "user must have the doctor role"})
	}
	if err = svc.checkHospital(ctx, nd.HospitalID); err != nil {
		return Doctor{}, err
	}

	now := core.NowFunc()
	d, err := svc.repo.CreateDoctor(ctx, Doctor{
		ID:              core.NewID(),
		UserID:          usr.ID,
		Name:            usr.Name,
		Specialty:       nd.Specialty,
		Qualification:   nd.Qualification,
		HospitalID:      nd.HospitalID,
		LicenseNumber:   nd.LicenseNumber,
		Phone:           nd.Phone,
		Email:           usr.Email,
		ExperienceYears: nd.ExperienceYears,
		IsAvailable:     nd.IsAvailable == nil || *nd.IsAvailable,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		if errors.Cause(err) == ErrDoctorExists {
			return Doctor{}, core.NewValidationError(err, core.FieldError{Field: "user_id", Error: err.Error()})
		}
		return Doctor{}, errors.Wrap(err, "creating doctor")
	}
	return d, svc.record(ctx, audit.ActionCreate, "doctor", d.ID)
}

func (svc *Service) QueryDoctors(ctx context.Context, filter DoctorFilter, ordering []core.DBOrdering) ([]Doctor, error) {
	filter.Search = core.CleanString(filter.Search)
	filter.Specialty = core.CleanString(filter.Specialty)
	return svc.repo.QueryDoctors(ctx, filter, core.AllowedOrderings(ordering, DoctorOrderingFields...))
}

func (svc *Service) GetDoctor(ctx context.Context, id string) (Doctor, error) {
	return svc.repo.GetDoctor(ctx, id)
}

// UpdateDoctor edits a doctor profile; directory managers and the doctor themselves may do so.
func (svc *Service) UpdateDoctor(ctx context.Context, actor user.User, id string, nd NewDoctor) (Doctor, error) {
	d, err := svc.repo.GetDoctor(ctx, id)
	if err != nil {
		return Doctor{}, err
	}
	if !CanManageDirectory(actor) && actor.ID != d.UserID {
		return Doctor{}, core.ErrPermissionDenied
	}
	if err = svc.checkHospital(ctx, nd.HospitalID); err != nil {
		return Doctor{}, err
	}

	d.Specialty, d.Qualification, d.HospitalID = nd.Specialty, nd.Qualification, nd.HospitalID
	d.LicenseNumber, d.Phone, d.ExperienceYears = nd.LicenseNumber, nd.Phone, nd.ExperienceYears
	if nd.IsAvailable != nil {
		d.IsAvailable = *nd.IsAvailable
	}
	d.UpdatedAt = core.NowFunc()
	if d, err = svc.repo.UpdateDoctor(ctx, d); err != nil {
		return Doctor{}, errors.Wrap(err, "updating doctor")
	}
	return d, svc.record(ctx, audit.ActionUpdate, "doctor", d.ID)
}

func (svc *Service) DeleteDoctor(ctx context.Context, id string) error {
	if err := svc.repo.DeleteDoctor(ctx, id); err != nil {
		return err
	}
	return svc.record(ctx, audit.ActionDelete, "doctor", id)
}

// Patients

// CreatePatient opens a patient record. Staff and doctors may open one for any user; others only for themselves.
func (svc *Service) CreatePatient(ctx context.Context, actor user.User, np NewPatient) (Patient, error) {
	if np.UserID == "" {
		np.UserID = actor.ID
	}
	if np.UserID != actor.ID && !CanSeePatients(actor) {
		return Patient{}, core.ErrPermissionDenied
	}
	usr, err := svc.users.GetByID(ctx, np.UserID)
	if err != nil {
		if core.IsNotFound(err) {
			return Patient{}, core.NewValidationError(err, core.FieldError{Field: "user_id", Error: err.Error()})
		}
		return Patient{}, err
	}
	if np.ITSID == "" {
		np.ITSID = usr.ITSID
	}
	if np.Name == "" {
		np.Name = usr.Name
	}

	now := core.NowFunc()
	p := Patient{ID: core.NewID(), UserID: usr.ID, CreatedAt: now}
	applyPatient(&p, np)
	if p, err = svc.repo.CreatePatient(ctx, p); err != nil {
		if errors.Cause(err) == ErrPatientExists {
			return Patient{}, core.NewValidationError(err, core.FieldError{Field: "user_id", Error: err.Error()})
		}
		return Patient{}, errors.Wrap(err, "creating patient")
	}
	return p, svc.record(ctx, audit.ActionCreate, "patient", p.ID)
}

func applyPatient(p *Patient, np NewPatient) {
	p.ITSID = np.ITSID
	p.Name = np.Name
	p.DateOfBirth = np.DateOfBirth
	p.Gender = np.Gender
	p.BloodGroup = np.BloodGroup
	p.Phone = np.Phone
	p.Address = np.Address
	p.EmergencyContact = np.EmergencyContact
	p.MedicalHistory = np.MedicalHistory
	p.Allergies = np.Allergies
	p.UpdatedAt = core.NowFunc()
}

// QueryPatients returns every matching record to staff and doctors, the viewer's own records to others.
func (svc *Service) QueryPatients(ctx context.Context, viewer user.User, filter PatientFilter, ordering []core.DBOrdering) ([]Patient, error) {
	filter.Search = core.CleanString(filter.Search)
	if !CanSeePatients(viewer) {
		filter.UserID = viewer.ID
	}
	return svc.repo.QueryPatients(ctx, filter, core.AllowedOrderings(ordering, PatientOrderingFields...))
}

func (svc *Service) GetPatient(ctx context.Context, viewer user.User, id string) (Patient, error) {
	p, err := svc.repo.GetPatient(ctx, id)
	if err != nil {
		return Patient{}, err
	}
	if !CanSeePatients(viewer) && p.UserID != viewer.ID {
		return Patient{}, ErrPatientNotFound
	}
	return p, nil
}

func (svc *Service) UpdatePatient(ctx context.Context, viewer user.User, id string, np NewPatient) (Patient, error) {
	p, err := svc.GetPatient(ctx, viewer, id)
	if err != nil {
		return Patient{}, err
	}
	if np.ITSID == "" {
		np.ITSID = p.ITSID
	}
	if np.Name == "" {
		np.Name = p.Name
	}
	applyPatient(&p, np)
	if p, err = svc.repo.UpdatePatient(ctx, p); err != nil {
		return Patient{}, errors.Wrap(err, "updating patient")
	}
	return p, svc.record(ctx, audit.ActionUpdate, "patient", p.ID)
}

func (svc *Service) DeletePatient(ctx context.Context, viewer user.User, id string) error {
	if !viewer.IsStaff() {
		return core.ErrPermissionDenied
	}
	if err := svc.repo.DeletePatient(ctx, id); err != nil {
		return err
	}
	return svc.record(ctx, audit.ActionDelete, "patient", id)
}

func (svc *Service) record(ctx context.Context, action, entity, id string) error {
	if err := svc.auditor.Record(ctx, action, entity, id, nil); err != nil {
		return errors.Wrap(err, "recording audit entry")
	}
	return nil
}
