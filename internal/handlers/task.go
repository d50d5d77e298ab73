package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"charles-backend/internal/middleware"
	"charles-backend/internal/models"
	"charles-backend/internal/repository"
	"charles-backend/internal/services"
)

type TaskHandler struct {
	taskRepo *repository.TaskRepo
	jobRepo  *repository.JobRepo
	redis    *redis.Client
}

func NewTaskHandler(taskRepo *repository.TaskRepo, jobRepo *repository.JobRepo, redisClient *redis.Client) *TaskHandler {
	return &TaskHandler{
		taskRepo: taskRepo,
		jobRepo:  jobRepo,
		redis:    redisClient,
	}
}

var validKinds = map[string]bool{
	models.TaskKindHelp:    true,
	models.TaskKindSummary: true,
}

var validFormats = map[string]bool{
	models.FormatQnA:         true,
	models.FormatSummary:     true,
	models.FormatExplanation: true,
}

// Create accepts the task form, stores a pending task, and enqueues the
// generation job. The AI call itself happens in the worker; the client
// follows progress over the websocket or by polling the job.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	fieldErrors := make(map[string]string)

	if !validKinds[req.Kind] {
		fieldErrors["kind"] = "Kind must be assignment-help or summarization"
	}
	if !validFormats[req.OutputFormat] {
		fieldErrors["output_format"] = "Output format must be qna, summary or explanation"
	}

	hasQuery := req.Query != nil && strings.TrimSpace(*req.Query) != ""
	hasFile := req.FileDataURI != nil && *req.FileDataURI != ""
	hasURL := req.SourceURL != nil && strings.TrimSpace(*req.SourceURL) != ""
	if !hasQuery && !hasFile && !hasURL {
		fieldErrors["query"] = "Provide a question, a file or a video link"
	}

	if hasFile {
		if _, _, err := services.ParseDataURI(*req.FileDataURI); err != nil {
			fieldErrors["file_data_uri"] = "Attached file is not a valid data URI"
		}
	}
	if hasURL && services.ExtractVideoID(*req.SourceURL) == "" {
		fieldErrors["source_url"] = "Link must be a valid YouTube URL"
	}

	if len(fieldErrors) > 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fieldErrors, r))
		return
	}

	userID := middleware.GetUserID(r.Context())

	task := &models.Task{
		UserID:       userID,
		Kind:         req.Kind,
		Subject:      strings.TrimSpace(req.Subject),
		OutputFormat: req.OutputFormat,
		Query:        req.Query,
		FileDataURI:  req.FileDataURI,
		FileName:     req.FileName,
		SourceURL:    req.SourceURL,
		Status:       "pending",
	}

	if err := h.taskRepo.Create(r.Context(), task); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create task", r))
		return
	}

	job := &models.Job{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        "task-generation",
		Status:      "queued",
		ReferenceID: task.ID,
		MaxRetries:  2,
		CreatedAt:   time.Now(),
	}

	if err := h.jobRepo.Create(r.Context(), job); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to enqueue job", r))
		return
	}

	jobBytes, _ := json.Marshal(job)
	h.redis.LPush(r.Context(), "queue:task-generation", string(jobBytes))

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"task_id": task.ID,
		"job_id":  job.ID,
	})
}

// Get returns the task plus, when a result exists, its derived rendering.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, ok := h.ownedTask(w, r)
	if !ok {
		return
	}

	resp := map[string]interface{}{"task": task}
	if task.ResultText != nil {
		resp["result"] = services.Interpret(*task.ResultText)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	search := r.URL.Query().Get("search")

	tasks, total, err := h.taskRepo.ListByUser(r.Context(), userID, search, perPage, (page-1)*perPage)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list tasks", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tasks":    tasks,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	task, ok := h.ownedTask(w, r)
	if !ok {
		return
	}

	if err := h.taskRepo.Delete(r.Context(), task.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete task", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Task deleted"})
}

func (h *TaskHandler) ownedTask(w http.ResponseWriter, r *http.Request) (*models.Task, bool) {
	taskID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid task ID", r))
		return nil, false
	}

	task, err := h.taskRepo.GetByID(r.Context(), taskID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Task not found", r))
		return nil, false
	}

	if task.UserID != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Task not found", r))
		return nil, false
	}

	return task, true
}
