package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"google.golang.org/api/option"

	"charles-backend/internal/models"
	"charles-backend/internal/repository"
)

// TaskInput is the resolved source material for one task: extracted text
// and/or an inline media attachment.
type TaskInput struct {
	Text  string
	Media *genai.Blob
}

type GeminiService struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	taskRepo *repository.TaskRepo
	jobRepo  *repository.JobRepo
	redis    *redis.Client
	rateChan chan struct{} // Token bucket
}

func NewGeminiService(
	apiKey string,
	concurrentReqs int,
	taskRepo *repository.TaskRepo,
	jobRepo *repository.JobRepo,
	redisClient *redis.Client,
) (*GeminiService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel("gemini-3-flash-preview")
	model.SetTemperature(0.3)
	model.SetTopP(0.95)

	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiService{
		client:   client,
		model:    model,
		taskRepo: taskRepo,
		jobRepo:  jobRepo,
		redis:    redisClient,
		rateChan: rateChan,
	}, nil
}

func (s *GeminiService) Close() {
	s.client.Close()
}

// acquireRate blocks until a rate slot is available
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

// PublishUpdate sends a WebSocket update via Redis pub/sub
func (s *GeminiService) PublishUpdate(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	data, _ := json.Marshal(msg)
	s.redis.Publish(ctx, fmt.Sprintf("task_updates:%s", userID.String()), string(data))
}

// GenerateTaskResult runs one AI task end to end: builds the prompt, calls
// the model, and stores the returned text as the task's result envelope.
// The stored string is exactly what the model produced after removing a
// markdown code fence wrapper; whether it renders as a Q&A set or plain text
// is decided at read time by Interpret.
func (s *GeminiService) GenerateTaskResult(ctx context.Context, job *models.Job, task *models.Task, input TaskInput) error {
	if err := s.acquireRate(ctx); err != nil {
		return err
	}
	defer s.releaseRate()

	prompt := buildTaskPrompt(task, input.Text)

	s.PublishUpdate(ctx, job.UserID, models.WSMessage{
		Type: "status_update",
		Payload: models.StatusUpdate{
			JobID: job.ID, Step: 2, StepName: "Asking Charles",
			EstimatedSecondsRemaining: 20,
		},
	})

	parts := []genai.Part{genai.Text(prompt)}
	if input.Media != nil {
		parts = append(parts, *input.Media)
	}

	resp, err := s.model.GenerateContent(ctx, parts...)
	if err != nil {
		return &UpstreamError{Provider: "gemini", Message: err.Error()}
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			log.Printf("Gemini candidate %d stopped early: %s", i, cand.FinishReason)
		}
	}

	rawText := stripCodeFence(extractText(resp))
	if rawText == "" {
		log.Println("WARNING: Gemini returned empty text. Using fallback.")
		rawText = "Charles could not produce an answer for this request. The attachment may have been unreadable or the content was blocked by safety filters."
	}

	s.PublishUpdate(ctx, job.UserID, models.WSMessage{
		Type: "status_update",
		Payload: models.StatusUpdate{
			JobID: job.ID, Step: 3, StepName: "Formatting",
			EstimatedSecondsRemaining: 5,
		},
	})

	return s.taskRepo.SetResult(ctx, task.ID, rawText)
}

// TranscribeAudio uses the Gemini File API to transcribe audio bytes. Used as
// the fallback when a lecture video has no subtitle track.
func (s *GeminiService) TranscribeAudio(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if err := s.acquireRate(ctx); err != nil {
		return "", err
	}
	defer s.releaseRate()

	if len(audio) == 0 {
		return "", fmt.Errorf("audio payload is empty")
	}

	file, err := s.client.UploadFile(ctx, "", bytes.NewReader(audio), &genai.UploadFileOptions{
		DisplayName: "lecture-audio",
		MIMEType:    mimeType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload audio to Gemini: %w", err)
	}

	// Ensure remote file is cleaned up
	defer s.client.DeleteFile(context.Background(), file.Name)

	// Wait until file is active
	for i := 0; i < 20; i++ {
		current, getErr := s.client.GetFile(ctx, file.Name)
		if getErr != nil {
			return "", fmt.Errorf("failed to get uploaded file status: %w", getErr)
		}

		if current.State == genai.FileStateActive {
			file = current
			break
		}
		if current.State == genai.FileStateFailed {
			return "", fmt.Errorf("Gemini failed to process uploaded audio file")
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}

	if file.State != genai.FileStateActive {
		return "", fmt.Errorf("audio file did not become active in time")
	}

	prompt := "Transcribe the provided audio verbatim. Return plain text only, without markdown, headers, or explanations."

	resp, err := s.model.GenerateContent(ctx,
		genai.Text(prompt),
		genai.FileData{MIMEType: mimeType, URI: file.URI},
	)
	if err != nil {
		return "", fmt.Errorf("Gemini transcription error: %w", err)
	}

	text := strings.TrimSpace(extractText(resp))
	if text == "" {
		return "", fmt.Errorf("Gemini returned empty transcription")
	}

	return text, nil
}

// Helper functions

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func buildTaskPrompt(task *models.Task, sourceText string) string {
	var b strings.Builder

	// Layer 1 — Role
	switch task.Kind {
	case models.TaskKindSummary:
		b.WriteString("You are Charles, an expert study assistant. Summarize the provided material for a student.\n\n")
	default:
		b.WriteString("You are Charles, an expert study assistant. Help a student work through the assignment below.\n\n")
	}

	// Layer 2 — Output format
	switch task.OutputFormat {
	case models.FormatQnA:
		b.WriteString("CRITICAL: Return ONLY a valid JSON array. No preamble, no markdown, no backticks.\n")
		b.WriteString(`Each element must be an object of the form {"Question": "string", "Answer": "string"}.` + "\n")
		b.WriteString("Cover every distinct question the material raises, in order.\n\n")
	case models.FormatSummary:
		b.WriteString("Format: a structured summary with short headed sections and bullet points. Plain text, no tables.\n\n")
	case models.FormatExplanation:
		b.WriteString("Format: a step-by-step explanation in flowing prose a student can follow, showing working where relevant.\n\n")
	}

	// Layer 3 — Subject
	if task.Subject != "" {
		b.WriteString(fmt.Sprintf("Subject: %s\n\n", task.Subject))
	}

	// Layer 4 — The student's own question
	if task.Query != nil && *task.Query != "" {
		b.WriteString("Student's request:\n")
		b.WriteString(*task.Query)
		b.WriteString("\n\n")
	}

	// Layer 5 — Source material
	if sourceText != "" {
		b.WriteString("---MATERIAL START---\n")
		b.WriteString(sourceText)
		b.WriteString("\n---MATERIAL END---\n")
	}

	return b.String()
}
