package handlers

import (
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/xelth-com/eckdesk/internal/middleware"
	"github.com/xelth-com/eckdesk/internal/services/printer"
	"github.com/xelth-com/eckdesk/internal/services/requests"
	"github.com/xelth-com/eckdesk/internal/storage"
)

// maxFilesPerRequest bounds a multipart create
const maxFilesPerRequest = 10

// memory kept for multipart parsing; larger parts spill to disk
const multipartMemory = 32 << 20

func (r *Router) listRequests(w http.ResponseWriter, req *http.Request) {
	actor, _ := middleware.ActorFromContext(req.Context())
	q := req.URL.Query()

	list, err := r.requests.List(req.Context(), actor, requests.ListFilter{
		Status:     q.Get("status"),
		Priority:   q.Get("priority"),
		Technician: q.Get("technician"),
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// createRequest accepts JSON or multipart/form-data with "files" parts
func (r *Router) createRequest(w http.ResponseWriter, req *http.Request) {
	actor, _ := middleware.ActorFromContext(req.Context())

	var in requests.CreateInput
	var uploads []storage.File

	if isMultipart(req) {
		req.Body = http.MaxBytesReader(w, req.Body, maxFilesPerRequest*storage.MaxFileSize+(1<<20))
		if err := req.ParseMultipartForm(multipartMemory); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid multipart form")
			return
		}
		defer req.MultipartForm.RemoveAll()

		in = requests.CreateInput{
			Requester:   req.FormValue("requester"),
			Name:        req.FormValue("name"),
			Description: req.FormValue("description"),
			Technician:  req.FormValue("technician"),
			Status:      req.FormValue("status"),
			Priority:    req.FormValue("priority"),
			Site:        req.FormValue("site"),
		}

		headers := req.MultipartForm.File["files"]
		if len(headers) > maxFilesPerRequest {
			respondError(w, http.StatusBadRequest, "Too many files")
			return
		}
		files, closeAll, err := openParts(headers)
		defer closeAll()
		if err != nil {
			respondError(w, http.StatusBadRequest, "Failed to read uploaded file")
			return
		}
		uploads = files
	} else if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if strings.TrimSpace(in.Requester) == "" {
		in.Requester = actor.Name
	}

	created, err := r.requests.Create(req.Context(), actor, in, uploads)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (r *Router) getRequest(w http.ResponseWriter, req *http.Request) {
	actor, _ := middleware.ActorFromContext(req.Context())
	found, err := r.requests.Get(req.Context(), actor, mux.Vars(req)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, found)
}

func (r *Router) updateRequest(w http.ResponseWriter, req *http.Request) {
	actor, _ := middleware.ActorFromContext(req.Context())

	var in requests.UpdateInput
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	updated, err := r.requests.Update(req.Context(), actor, mux.Vars(req)["id"], in)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (r *Router) deleteRequest(w http.ResponseWriter, req *http.Request) {
	actor, _ := middleware.ActorFromContext(req.Context())
	if err := r.requests.Delete(req.Context(), actor, mux.Vars(req)["id"]); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) requestEvents(w http.ResponseWriter, req *http.Request) {
	actor, _ := middleware.ActorFromContext(req.Context())
	events, err := r.requests.Events(req.Context(), actor, mux.Vars(req)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, events)
}

// requestSlip renders a printable summary with a QR link back to the request
func (r *Router) requestSlip(w http.ResponseWriter, req *http.Request) {
	actor, _ := middleware.ActorFromContext(req.Context())
	found, err := r.requests.Get(req.Context(), actor, mux.Vars(req)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	pdf, err := printer.GenerateRequestSlip(found, r.cfg.BaseURL)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writePDF(w, "request_"+found.ID+".pdf", pdf)
}

// requestLabels renders a sheet of QR labels for the listed requests
func (r *Router) requestLabels(w http.ResponseWriter, req *http.Request) {
	actor, _ := middleware.ActorFromContext(req.Context())
	q := req.URL.Query()

	list, err := r.requests.List(req.Context(), actor, requests.ListFilter{
		Status:     q.Get("status"),
		Priority:   q.Get("priority"),
		Technician: q.Get("technician"),
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	cfg := printer.DefaultLabelConfig
	if cols, err := strconv.Atoi(q.Get("cols")); err == nil && cols > 0 && cols <= 6 {
		cfg.Cols = cols
	}
	if rows, err := strconv.Atoi(q.Get("rows")); err == nil && rows > 0 && rows <= 15 {
		cfg.Rows = rows
	}

	pdf, err := printer.GenerateLabelsPDF(list, r.cfg.BaseURL, cfg)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writePDF(w, "request_labels.pdf", pdf)
}

func (r *Router) addAttachment(w http.ResponseWriter, req *http.Request) {
	actor, _ := middleware.ActorFromContext(req.Context())

	req.Body = http.MaxBytesReader(w, req.Body, storage.MaxFileSize+(1<<20))
	if err := req.ParseMultipartForm(multipartMemory); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer req.MultipartForm.RemoveAll()

	headers := req.MultipartForm.File["file"]
	if len(headers) != 1 {
		respondError(w, http.StatusBadRequest, "Exactly one file is required")
		return
	}
	files, closeAll, err := openParts(headers)
	defer closeAll()
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}

	a, err := r.requests.AddAttachment(req.Context(), actor, mux.Vars(req)["id"], files[0])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, a)
}

func (r *Router) removeAttachment(w http.ResponseWriter, req *http.Request) {
	actor, _ := middleware.ActorFromContext(req.Context())
	vars := mux.Vars(req)
	if err := r.requests.RemoveAttachment(req.Context(), actor, vars["id"], vars["attachmentId"]); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func isMultipart(req *http.Request) bool {
	return strings.HasPrefix(req.Header.Get("Content-Type"), "multipart/form-data")
}

// openParts opens every uploaded part; the returned func closes whatever was opened
func openParts(headers []*multipart.FileHeader) ([]storage.File, func(), error) {
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	files := make([]storage.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, err
		}
		opened = append(opened, f)
		files = append(files, storage.File{
			Name: fh.Filename,
			Type: fh.Header.Get("Content-Type"),
			Size: fh.Size,
			Body: f,
		})
	}
	return files, closeAll, nil
}
