package http

import (
	"errors"
	"net/http"

	"billed/internal/core"
	applog "billed/internal/log"
	"billed/internal/newbill"
	"billed/internal/session"
	"billed/internal/views"
)

const submitFailedMessage = "L'envoi de la note de frais a échoué, réessayez."

func (s *Server) handleNewBillForm(w http.ResponseWriter, r *http.Request) {
	u, _ := session.FromContext(r.Context())
	ctrl := s.forms.Get(u)
	ctrl.Reset()

	form := views.EmptyNewBillForm()
	form.Attachment = attachmentView(ctrl.Attachment())
	form.Submitting = ctrl.State() == newbill.Submitting
	s.renderPage(w, r, http.StatusOK, "new_bill.html", views.Page{
		Title:  "Envoyer une note de frais",
		Active: "new",
		Form:   form,
	})
}

// handleAttachReceipt stores the uploaded receipt as the form attachment
// and answers with the attachment partial.
func (s *Server) handleAttachReceipt(w http.ResponseWriter, r *http.Request) {
	u, _ := session.FromContext(r.Context())
	ctrl := s.forms.Get(u)

	file, err := ReadReceiptUpload(w, r, s.config.MaxUploadBytes)
	if err != nil {
		switch {
		case errors.Is(err, errUploadTooLarge):
			RequestEntityTooLargeError("Justificatif trop volumineux").
				TriggerWarningNotification("Justificatif trop volumineux").
				Write(w)
		default:
			BadRequestError("Justificatif manquant").Write(w)
		}
		return
	}

	ctx, fx := withEffects(r.Context())
	attachment, err := ctrl.AttachFile(ctx, file)
	if err != nil {
		var verr *core.ValidationError
		switch {
		case errors.As(err, &verr):
			b := s.renderPartial(r, http.StatusUnprocessableEntity, "attachment", attachmentView(ctrl.Attachment()))
			fx.apply(b).TriggerReceiptRejected().Write(w)
		case errors.Is(err, core.ErrSubmitInFlight):
			w.WriteHeader(http.StatusNoContent)
		default:
			applog.LogError(r.Context(), "Failed to attach receipt", err, applog.OpAttach,
				applog.NewFields().WithUser(u.Email, string(u.Type)))
			s.renderPartial(r, http.StatusInternalServerError, "attachment", attachmentView(ctrl.Attachment())).
				TriggerErrorNotification("Le justificatif n'a pas pu être enregistré.").
				Write(w)
		}
		return
	}

	s.renderPartial(r, http.StatusOK, "attachment", attachmentView(attachment)).Write(w)
}

// handleSubmitBill submits the form. On success the client is sent to the
// bill list; otherwise the form is re-rendered with the user's input.
func (s *Server) handleSubmitBill(w http.ResponseWriter, r *http.Request) {
	u, _ := session.FromContext(r.Context())
	ctrl := s.forms.Get(u)

	fields, err := ParseBillFields(r)
	if err != nil {
		BadRequestError("Formulaire invalide").Write(w)
		return
	}

	ctx, fx := withEffects(r.Context())
	bill, err := ctrl.Submit(ctx, fields)
	if err != nil {
		var verr *core.ValidationError
		var serr *core.SubmissionError
		switch {
		case errors.Is(err, core.ErrSubmitInFlight):
			w.WriteHeader(http.StatusNoContent)
		case errors.As(err, &verr):
			s.renderForm(r, http.StatusUnprocessableEntity, ctrl, fields, verr.Error()).
				TriggerWarningNotification(verr.Error()).
				Write(w)
		case errors.As(err, &serr):
			s.renderForm(r, http.StatusInternalServerError, ctrl, fields, serr.Err.Error()).
				TriggerErrorNotification(submitFailedMessage).
				Write(w)
		default:
			applog.LogError(r.Context(), "Unexpected submit error", err, applog.OpSubmit, nil)
			s.renderForm(r, http.StatusInternalServerError, ctrl, fields, submitFailedMessage).Write(w)
		}
		return
	}

	if !isHTMX(r) {
		http.Redirect(w, r, newbill.BillsPath, http.StatusSeeOther)
		return
	}
	b := NewHTMXResponse().TriggerBillCreated(bill.ID)
	fx.apply(b).Write(w)
}

func (s *Server) renderForm(r *http.Request, status int, ctrl *newbill.Controller, f newbill.Fields, msg string) *HTMXResponseBuilder {
	form := views.EmptyNewBillForm()
	form.Values = views.FormValues{
		Type:       f.Type,
		Name:       f.Name,
		Date:       f.Date,
		Amount:     f.Amount,
		VAT:        f.VAT,
		Pct:        f.Pct,
		Commentary: f.Commentary,
	}
	form.Attachment = attachmentView(ctrl.Attachment())
	form.Error = msg
	return s.renderPartial(r, status, "new_bill_form", form)
}

func attachmentView(a newbill.Attachment) views.AttachmentView {
	return views.AttachmentView{FileName: a.FileName, FileURL: a.FileURL}
}
