package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/redis/go-redis/v9"

	"charles-backend/internal/models"
	"charles-backend/internal/repository"
	"charles-backend/internal/services"
)

const taskQueue = "queue:task-generation"

// Pool runs the task-generation workers. Jobs are picked off the Redis list,
// locked with SetNX so concurrent instances never double-process, and retried
// with backoff until MaxRetries. Provider failures skip the retry loop and
// fail the job outright.
type Pool struct {
	redis       *redis.Client
	gemini      *services.GeminiService
	youtube     *services.YouTubeService
	fileExtract *services.FileExtractService
	taskRepo    *repository.TaskRepo
	jobRepo     *repository.JobRepo
	workerCount int
	stopChan    chan struct{}
}

func NewPool(
	redisClient *redis.Client,
	gemini *services.GeminiService,
	youtube *services.YouTubeService,
	fileExtract *services.FileExtractService,
	taskRepo *repository.TaskRepo,
	jobRepo *repository.JobRepo,
	workerCount int,
) *Pool {
	return &Pool{
		redis:       redisClient,
		gemini:      gemini,
		youtube:     youtube,
		fileExtract: fileExtract,
		taskRepo:    taskRepo,
		jobRepo:     jobRepo,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		go p.worker(i)
	}
	log.Printf("Started %d worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		result, err := p.redis.BLPop(ctx, 30*time.Second, taskQueue).Result()
		if err != nil {
			continue // Timeout or error, retry
		}

		if len(result) < 2 {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Worker %d: failed to parse job: %v", id, err)
			continue
		}

		lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
		locked, err := p.redis.SetNX(ctx, lockKey, "1", 10*time.Minute).Result()
		if err != nil || !locked {
			continue // Another worker has this job
		}

		log.Printf("Worker %d: processing job %s", id, job.ID)

		p.jobRepo.UpdateStatus(ctx, job.ID, "processing")
		p.gemini.PublishUpdate(ctx, job.UserID, models.WSMessage{
			Type: "status_update",
			Payload: models.StatusUpdate{
				JobID:    job.ID,
				Step:     1,
				StepName: "Preparing your material",
			},
		})

		if err := p.processTask(ctx, &job); err != nil {
			p.handleFailure(ctx, &job, err)
		} else {
			p.handleSuccess(ctx, &job)
		}

		p.redis.Del(ctx, lockKey)
	}
}

func (p *Pool) processTask(ctx context.Context, job *models.Job) error {
	task, err := p.taskRepo.GetByID(ctx, job.ReferenceID)
	if err != nil {
		return fmt.Errorf("failed to get task: %w", err)
	}

	p.taskRepo.UpdateStatus(ctx, task.ID, "processing")

	input, err := p.resolveInput(ctx, job, task)
	if err != nil {
		return err
	}

	return p.gemini.GenerateTaskResult(ctx, job, task, input)
}

// resolveInput turns the task's attachment into model input. Textual files
// are extracted locally; binary files ride along as inline media; YouTube
// links resolve to a transcript, falling back to audio transcription when
// captions are unavailable.
func (p *Pool) resolveInput(ctx context.Context, job *models.Job, task *models.Task) (services.TaskInput, error) {
	var input services.TaskInput

	if task.FileDataURI != nil && *task.FileDataURI != "" {
		mimeType, data, err := services.ParseDataURI(*task.FileDataURI)
		if err != nil {
			return input, fmt.Errorf("invalid file attachment: %w", err)
		}

		filename := ""
		if task.FileName != nil {
			filename = *task.FileName
		}

		if p.fileExtract.IsTextual(mimeType, filename) {
			text, err := p.fileExtract.ExtractText(data, mimeType, filename)
			if err != nil {
				return input, fmt.Errorf("failed to extract text from %s: %w", filename, err)
			}
			input.Text = text
		} else {
			input.Media = &genai.Blob{MIMEType: mimeType, Data: data}
		}
		return input, nil
	}

	if task.SourceURL != nil && *task.SourceURL != "" {
		videoID := services.ExtractVideoID(*task.SourceURL)
		if videoID == "" {
			return input, fmt.Errorf("invalid YouTube URL: %s", *task.SourceURL)
		}

		transcript, transcriptErr := p.youtube.GetTranscript(videoID)
		if transcriptErr != nil {
			p.gemini.PublishUpdate(ctx, job.UserID, models.WSMessage{
				Type: "status_update",
				Payload: models.StatusUpdate{
					JobID:    job.ID,
					Step:     2,
					StepName: "Transcribing the video",
				},
			})

			audioBytes, mimeType, audioErr := p.youtube.DownloadAudio(*task.SourceURL)
			if audioErr != nil {
				return input, fmt.Errorf("transcript failed for video %s: %v; audio download failed: %w", videoID, transcriptErr, audioErr)
			}

			transcribed, transcribeErr := p.gemini.TranscribeAudio(ctx, audioBytes, mimeType)
			if transcribeErr != nil {
				return input, fmt.Errorf("transcript failed for video %s: %v; transcription failed: %w", videoID, transcriptErr, transcribeErr)
			}
			transcript = transcribed
		}

		input.Text = transcript
		return input, nil
	}

	// Query-only task: the prompt itself is the material.
	return input, nil
}

func (p *Pool) handleSuccess(ctx context.Context, job *models.Job) {
	p.jobRepo.UpdateStatus(ctx, job.ID, "completed")

	task, err := p.taskRepo.GetByID(ctx, job.ReferenceID)
	kind := ""
	if err == nil {
		kind = task.Kind
	}

	p.gemini.PublishUpdate(ctx, job.UserID, models.WSMessage{
		Type: "completed",
		Payload: models.CompletedEvent{
			JobID:    job.ID,
			TaskID:   job.ReferenceID,
			TaskKind: kind,
		},
	})

	log.Printf("Job %s completed successfully", job.ID)
}

// retryable reports whether a failed job should go back on the queue.
// Provider errors (Gemini refusing, gateway outages) carry a message meant
// for the user and are not retried; everything else gets another attempt.
func retryable(err error) bool {
	var upstream *services.UpstreamError
	return !errors.As(err, &upstream)
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	job.RetryCount++
	errMsg := err.Error()

	if retryable(err) && job.RetryCount <= job.MaxRetries {
		log.Printf("Job %s failed (attempt %d): %s, retrying", job.ID, job.RetryCount, errMsg)
		p.jobRepo.UpdateStatus(ctx, job.ID, "pending")
		p.jobRepo.UpdateError(ctx, job.ID, errMsg, job.RetryCount)

		jobBytes, _ := json.Marshal(job)
		backoff := time.Duration(1<<uint(job.RetryCount)) * time.Second
		time.AfterFunc(backoff, func() {
			p.redis.LPush(context.Background(), taskQueue, string(jobBytes))
		})
		return
	}

	log.Printf("Job %s failed permanently: %s", job.ID, errMsg)
	p.jobRepo.UpdateStatus(ctx, job.ID, "failed")
	p.jobRepo.UpdateError(ctx, job.ID, errMsg, job.RetryCount)
	p.taskRepo.UpdateStatus(ctx, job.ReferenceID, "failed")

	p.gemini.PublishUpdate(ctx, job.UserID, models.WSMessage{
		Type: "error",
		Payload: models.ErrorEvent{
			JobID:        job.ID,
			ErrorCode:    "JOB_FAILED",
			ErrorMessage: errMsg,
		},
	})
}
