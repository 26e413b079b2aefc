package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.lumeweb.com/httputil"
	"go.notebook.dev/notebook/core"
)

func (a *UploadAPI) directUploadHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := a.owner(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.maxDirect+formOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		a.writeError(w, core.NewUploadError(core.ErrKeyInvalidInput, err, "Invalid multipart form."))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		a.writeError(w, core.NewUploadError(core.ErrKeyInvalidInput, err, "The file field is required."))
		return
	}
	defer file.Close()

	record, err := a.uploads.Put(r.Context(), core.DirectUploadRequest{
		OwnerID:         ownerID,
		Filename:        header.Filename,
		Size:            header.Size,
		MimeType:        header.Header.Get("Content-Type"),
		DestinationPath: r.FormValue("path"),
		Data:            file,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}

	httputil.Context(r, w).Encode(record)
}

func (a *UploadAPI) listFilesHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := a.owner(w, r)
	if !ok {
		return
	}

	files, err := a.files.List(r.Context(), ownerID, r.URL.Query().Get("path"))
	if err != nil {
		a.writeError(w, err)
		return
	}

	httputil.Context(r, w).Encode(files)
}

func (a *UploadAPI) getFileHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := a.owner(w, r)
	if !ok {
		return
	}

	id, ok := fileID(w, r)
	if !ok {
		return
	}

	file, err := a.files.Get(r.Context(), ownerID, id)
	if err != nil {
		a.writeError(w, err)
		return
	}

	httputil.Context(r, w).Encode(file)
}

func (a *UploadAPI) deleteFileHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := a.owner(w, r)
	if !ok {
		return
	}

	id, ok := fileID(w, r)
	if !ok {
		return
	}

	if _, err := a.files.Delete(r.Context(), ownerID, id); err != nil {
		a.writeError(w, err)
		return
	}

	httputil.Context(r, w).Encode(successResponse{Success: true})
}

func fileID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil || id == 0 {
		http.Error(w, "Invalid file id", http.StatusBadRequest)
		return 0, false
	}

	return uint(id), true
}
