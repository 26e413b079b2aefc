package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.lumeweb.com/httputil"
	"go.notebook.dev/notebook/core"
	"go.notebook.dev/notebook/middleware"
	"go.uber.org/zap"
)

const (
	UPLOAD_API = "uploads"

	// multipart framing allowance on top of a chunk
	formOverhead = 1 << 20
)

var (
	_ core.API     = (*UploadAPI)(nil)
	_ core.APIInit = (*UploadAPI)(nil)
)

func init() {
	core.RegisterAPI(UPLOAD_API, NewUploadAPI())
}

// UploadAPI exposes the chunked and direct upload flows plus the file records they produce.
type UploadAPI struct {
	uploads   core.UploadService
	files     core.FileService
	users     core.UserService
	logger    *core.Logger
	chunkSize int64
	maxDirect int64
}

func NewUploadAPI() *UploadAPI {
	return &UploadAPI{}
}

func newUploadAPI(uploads core.UploadService, files core.FileService, users core.UserService, logger *core.Logger, chunkSize int64, maxDirect int64) *UploadAPI {
	return &UploadAPI{
		uploads:   uploads,
		files:     files,
		users:     users,
		logger:    logger,
		chunkSize: chunkSize,
		maxDirect: maxDirect,
	}
}

func (a *UploadAPI) Name() string {
	return UPLOAD_API
}

func (a *UploadAPI) Init() ([]core.ContextBuilderOption, error) {
	return core.ContextOptions(
		core.ContextWithStartupFunc(func(ctx core.Context) error {
			cfg := ctx.Config().Config().Core.Upload
			a.uploads = core.GetService[core.UploadService](ctx, core.UPLOAD_SERVICE)
			a.files = core.GetService[core.FileService](ctx, core.FILE_SERVICE)
			a.users = core.GetService[core.UserService](ctx, core.USER_SERVICE)
			a.logger = ctx.Logger()
			a.chunkSize = cfg.ChunkSize
			a.maxDirect = cfg.DirectLimit
			return nil
		}),
	), nil
}

func (a *UploadAPI) Configure(router *mux.Router) error {
	authMw := middleware.AuthMiddleware(middleware.AuthMiddlewareOptions{
		Users: a.users,
	})

	uploads := router.PathPrefix("/uploads").Subrouter()
	uploads.Use(authMw)
	uploads.HandleFunc("/init", a.initHandler).Methods(http.MethodPost)
	uploads.HandleFunc("/upload", a.uploadPartHandler).Methods(http.MethodPost)
	uploads.HandleFunc("/complete", a.completeHandler).Methods(http.MethodPost)
	uploads.HandleFunc("/abort", a.abortHandler).Methods(http.MethodPost)
	uploads.HandleFunc("/{sessionId}", a.statusHandler).Methods(http.MethodGet)

	files := router.PathPrefix("/files").Subrouter()
	files.Use(authMw)
	files.HandleFunc("", a.directUploadHandler).Methods(http.MethodPost)
	files.HandleFunc("", a.listFilesHandler).Methods(http.MethodGet)
	files.HandleFunc("/{id:[0-9]+}", a.getFileHandler).Methods(http.MethodGet)
	files.HandleFunc("/{id:[0-9]+}", a.deleteFileHandler).Methods(http.MethodDelete)

	return nil
}

type successResponse struct {
	Success bool `json:"success"`
}

func (a *UploadAPI) initHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := a.owner(w, r)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	size, err := strconv.ParseInt(r.PostFormValue("size"), 10, 64)
	if err != nil {
		a.writeError(w, core.NewUploadError(core.ErrKeyInvalidInput, err, "The size field must be an integer."))
		return
	}

	resp, err := a.uploads.Init(r.Context(), core.InitUploadRequest{
		OwnerID:         ownerID,
		Filename:        r.PostFormValue("filename"),
		DeclaredSize:    size,
		FileType:        core.FileType(r.PostFormValue("fileType")),
		MimeType:        r.PostFormValue("mimeType"),
		DestinationPath: r.PostFormValue("destinationPath"),
		UploadHandle:    r.PostFormValue("uploadHandle"),
		ObjectKey:       r.PostFormValue("objectKey"),
	})
	if err != nil {
		a.writeError(w, err)
		return
	}

	httputil.Context(r, w).Encode(resp)
}

func (a *UploadAPI) uploadPartHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := a.owner(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.chunkSize+formOverhead)
	if err := r.ParseMultipartForm(a.chunkSize + formOverhead); err != nil {
		a.writeError(w, core.NewUploadError(core.ErrKeyInvalidInput, err, "Invalid multipart form."))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	partNumber, err := strconv.ParseInt(r.FormValue("partNumber"), 10, 32)
	if err != nil {
		a.writeError(w, core.NewUploadError(core.ErrKeyInvalidInput, err, "The partNumber field must be an integer."))
		return
	}

	chunk, _, err := r.FormFile("chunk")
	if err != nil {
		a.writeError(w, core.NewUploadError(core.ErrKeyInvalidInput, err, "The chunk field is required."))
		return
	}
	defer chunk.Close()

	data, err := io.ReadAll(io.LimitReader(chunk, a.chunkSize+1))
	if err != nil {
		a.writeError(w, core.NewUploadError(core.ErrKeyInvalidInput, err))
		return
	}

	resp, err := a.uploads.UploadPart(r.Context(), ownerID, r.FormValue("sessionId"), int32(partNumber), data)
	if err != nil {
		a.writeError(w, err)
		return
	}

	httputil.Context(r, w).Encode(resp)
}

func (a *UploadAPI) completeHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := a.owner(w, r)
	if !ok {
		return
	}

	file, err := a.uploads.Complete(r.Context(), ownerID, r.FormValue("sessionId"))
	if err != nil {
		a.writeError(w, err)
		return
	}

	httputil.Context(r, w).Encode(file)
}

func (a *UploadAPI) abortHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := a.owner(w, r)
	if !ok {
		return
	}

	if err := a.uploads.Abort(r.Context(), ownerID, r.FormValue("sessionId")); err != nil {
		a.writeError(w, err)
		return
	}

	httputil.Context(r, w).Encode(successResponse{Success: true})
}

func (a *UploadAPI) statusHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := a.owner(w, r)
	if !ok {
		return
	}

	status, err := a.uploads.Status(r.Context(), ownerID, mux.Vars(r)["sessionId"])
	if err != nil {
		a.writeError(w, err)
		return
	}

	httputil.Context(r, w).Encode(status)
}

func (a *UploadAPI) owner(w http.ResponseWriter, r *http.Request) (uint, bool) {
	ownerID, err := middleware.GetUserFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return 0, false
	}

	return ownerID, true
}

func (a *UploadAPI) writeError(w http.ResponseWriter, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		err = core.NewUploadError(core.ErrKeyUploadTooLarge, err)
	}

	if uploadErr := core.AsUploadError(err); uploadErr != nil {
		if uploadErr.HttpStatus() >= http.StatusInternalServerError {
			a.logger.Error("upload request failed", zap.String("key", string(uploadErr.Key)), zap.Error(err))
		}
		http.Error(w, uploadErr.Message, uploadErr.HttpStatus())
		return
	}

	a.logger.Error("unexpected upload error", zap.Error(err))
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}
