package handler

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"bizreg/internal/attachment"
	"bizreg/internal/draft/api"
	"bizreg/internal/draft/models"
	"bizreg/internal/draft/service"
	id "bizreg/pkg/domain"
	dErrors "bizreg/pkg/domain-errors"
	"bizreg/pkg/platform/httputil"
)

type upsertInput struct {
	req           *api.UpsertDraftRequest
	primary       *attachment.Upload
	supplementary []attachment.Upload
}

func (in *upsertInput) command(owner id.UserID) service.UpsertCommand {
	req := in.req
	cmd := service.UpsertCommand{
		OwnerID:          owner,
		DraftID:          req.ParsedID(),
		ExpectedVersion:  req.ExpectedVersion,
		Jurisdiction:     req.Jurisdiction,
		JurisdictionFee:  string(req.JurisdictionFee),
		EntityName:       req.EntityName,
		EntityCategory:   req.EntityCategory,
		Status:           models.Status(req.Status),
		CurrentStep:      models.Step(req.CurrentStep),
		Owners:           req.OwnerInputs(),
		Address:          req.DomainAddress(),
		NewPrimary:       in.primary,
		NewSupplementary: in.supplementary,
	}
	if docs := req.ParsedDocuments(); docs != nil {
		cmd.Documents = &service.DocumentMeta{Primary: docs.Primary, Supplementary: docs.Supplementary}
	}
	return cmd
}

// decodeUpsert reads either a plain JSON body or a multipart body with a
// "draft" JSON part plus file parts.
func (h *Handler) decodeUpsert(w http.ResponseWriter, r *http.Request) (*upsertInput, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		req := &api.UpsertDraftRequest{}
		if err := httputil.DecodeJSON(r.Body, req); err != nil {
			return nil, err
		}
		if err := httputil.Prepare[api.UpsertDraftRequest](req); err != nil {
			return nil, err
		}
		return &upsertInput{req: req}, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid multipart body")
	}
	in := &upsertInput{}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, bodyError(err)
		}
		switch part.FormName() {
		case api.PartDraft:
			if in.req != nil {
				return nil, dErrors.New(dErrors.CodeBadRequest, "only one draft part may be sent")
			}
			req := &api.UpsertDraftRequest{}
			if err := httputil.DecodeJSON(part, req); err != nil {
				return nil, err
			}
			in.req = req
		case api.PartPrimary:
			if in.primary != nil {
				return nil, dErrors.New(dErrors.CodeBadRequest, "only one primary file may be uploaded")
			}
			up, err := h.readFile(part)
			if err != nil {
				return nil, err
			}
			if up != nil {
				in.primary = up
			}
		case api.PartSupplementary:
			up, err := h.readFile(part)
			if err != nil {
				return nil, err
			}
			if up != nil {
				in.supplementary = append(in.supplementary, *up)
			}
		default:
			if _, err := io.Copy(io.Discard, part); err != nil {
				return nil, bodyError(err)
			}
		}
		_ = part.Close()
	}
	if in.req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "draft part is required")
	}
	if err := httputil.Prepare[api.UpsertDraftRequest](in.req); err != nil {
		return nil, err
	}
	return in, nil
}

// readFile reads at most maxFileSize+1 bytes of a file part so oversized files
// reach the size check without being buffered whole. Empty file fields are
// skipped.
func (h *Handler) readFile(part *multipart.Part) (*attachment.Upload, error) {
	data, err := io.ReadAll(io.LimitReader(part, h.maxFileSize+1))
	if err != nil {
		return nil, bodyError(err)
	}
	if _, err := io.Copy(io.Discard, part); err != nil {
		return nil, bodyError(err)
	}
	if part.FileName() == "" && len(data) == 0 {
		return nil, nil
	}
	return &attachment.Upload{FileName: part.FileName(), Data: data}, nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return dErrors.New(dErrors.CodeFileTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
	}
	return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid multipart body")
}
