package petition

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/audit"
	"github.com/umoorsehhat/sehhat/core/policy"
)

const attachmentEntityType = "petition_attachment"

// NewAttachment describes an uploaded file.
type NewAttachment struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

func attachmentKey(petitionID, attachmentID, filename string) string {
	return path.Join("petitions", petitionID, attachmentID, filename)
}

// cleanFilename keeps the base name of filename.
func cleanFilename(filename string) string {
	filename = path.Base(strings.ReplaceAll(core.CleanString(filename), `\`, "/"))
	if filename == "." || filename == "/" {
		return ""
	}
	return filename
}

// AddAttachment stores a file on the petition; anyone who can see the petition may attach files.
func (svc *Service) AddAttachment(ctx context.Context, viewer policy.Viewer, id string, na NewAttachment) (Attachment, error) {
	p, err := svc.get(ctx, viewer, id)
	if err != nil {
		return Attachment{}, err
	}

	na.Filename = cleanFilename(na.Filename)
	switch {
	case na.Filename == "":
		return Attachment{}, core.NewValidationError(nil, core.FieldError{Field: "file", Error: "this field is required"})
	case na.Size <= 0:
		return Attachment{}, core.NewValidationError(nil, core.FieldError{Field: "file", Error: "the file is empty"})
	case na.Size > MaxAttachmentSize:
		return Attachment{}, core.NewValidationError(nil, core.FieldError{Field: "file", Error: "the file is too large"})
	}
	if na.ContentType == "" {
		na.ContentType = "application/octet-stream"
	}

	at := Attachment{
		ID:           core.NewID(),
		PetitionID:   p.ID,
		UploadedByID: viewer.UserID,
		Filename:     na.Filename,
		ContentType:  na.ContentType,
		Size:         na.Size,
		CreatedAt:    core.NowFunc(),
	}
	at.Key = attachmentKey(p.ID, at.ID, at.Filename)

	if err = svc.store.Put(ctx, at.Key, io.LimitReader(na.Content, na.Size), na.Size, na.ContentType); err != nil {
		return Attachment{}, errors.Wrap(err, "storing attachment content")
	}
	created, err := svc.repo.CreateAttachment(ctx, at)
	if err != nil {
		_ = svc.store.Delete(ctx, at.Key)
		return Attachment{}, errors.Wrap(err, "creating attachment")
	}
	at = created
	return at, svc.record(ctx, audit.ActionCreate, attachmentEntityType, at.ID, map[string]interface{}{"petition_id": p.ID})
}

func (svc *Service) Attachments(ctx context.Context, viewer policy.Viewer, id string) ([]Attachment, error) {
	p, err := svc.get(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryAttachments(ctx, p.ID)
}

func (svc *Service) attachment(ctx context.Context, viewer policy.Viewer, petitionID, attachmentID string) (Petition, Attachment, error) {
	p, err := svc.get(ctx, viewer, petitionID)
	if err != nil {
		return Petition{}, Attachment{}, err
	}
	at, err := svc.repo.GetAttachment(ctx, attachmentID)
	if err != nil {
		return Petition{}, Attachment{}, err
	}
	if at.PetitionID != p.ID {
		return Petition{}, Attachment{}, ErrAttachmentNotFound
	}
	return p, at, nil
}

// OpenAttachment returns the attachment and its content; the caller closes the reader.
func (svc *Service) OpenAttachment(ctx context.Context, viewer policy.Viewer, petitionID, attachmentID string) (Attachment, io.ReadCloser, error) {
	_, at, err := svc.attachment(ctx, viewer, petitionID, attachmentID)
	if err != nil {
		return Attachment{}, nil, err
	}
	rc, err := svc.store.Open(ctx, at.Key)
	if err != nil {
		return Attachment{}, nil, errors.Wrap(err, "opening attachment content")
	}
	return at, rc, nil
}

// DeleteAttachment removes an attachment; only its uploader and managers may do so.
func (svc *Service) DeleteAttachment(ctx context.Context, viewer policy.Viewer, petitionID, attachmentID string) error {
	p, at, err := svc.attachment(ctx, viewer, petitionID, attachmentID)
	if err != nil {
		return err
	}
	if at.UploadedByID != viewer.UserID && !CanManage(viewer, p) {
		return core.ErrPermissionDenied
	}
	if err = svc.repo.DeleteAttachment(ctx, at.ID); err != nil {
		return errors.Wrap(err, "deleting attachment")
	}
	if err = svc.store.Delete(ctx, at.Key); err != nil {
		return errors.Wrap(err, "deleting attachment content")
	}
	return svc.record(ctx, audit.ActionDelete, attachmentEntityType, at.ID, map[string]interface{}{"petition_id": p.ID})
}
