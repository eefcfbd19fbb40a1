package api

import (
	"net/http"

	"github.com/deepread-ai/deepread/pkg/queue"
	"github.com/deepread-ai/deepread/pkg/service"
)

// SubmissionResponse is returned by the submit endpoints. Status mirrors
// the service outcome; Message is the user-facing summary.
type SubmissionResponse struct {
	Status         service.SubmissionStatus `json:"status"`
	Message        string                   `json:"message"`
	TaskID         string                   `json:"task_id,omitempty"`
	DocHash        string                   `json:"doc_hash,omitempty"`
	Filename       string                   `json:"filename,omitempty"`
	ExistingTaskID string                   `json:"existing_task_id,omitempty"`
}

// submissionResponse maps a service submission to its HTTP status and
// response body. Created work is 202; an existing report answers with
// 200; an in-flight duplicate is 409 so clients can attach to the
// running task instead.
func submissionResponse(sub *service.Submission) (int, *SubmissionResponse) {
	resp := &SubmissionResponse{
		Status:         sub.Status,
		TaskID:         sub.TaskID,
		DocHash:        sub.DocHash,
		Filename:       sub.Filename,
		ExistingTaskID: sub.ExistingTaskID,
	}
	switch sub.Status {
	case service.SubmissionExists:
		resp.Message = "该内容已有解读报告"
		return http.StatusOK, resp
	case service.SubmissionInProgress:
		resp.Message = "相同内容正在处理中"
		return http.StatusConflict, resp
	default:
		resp.Message = "任务已创建，正在排队处理"
		return http.StatusAccepted, resp
	}
}

// StatsResponse is returned by GET /api/v1/stats.
type StatsResponse struct {
	Queue     queue.Stats      `json:"queue"`
	Active    []queue.TaskInfo `json:"active"`
	Documents int              `json:"documents"`
}

// DocumentInfo is one entry of GET /api/v1/documents.
type DocumentInfo struct {
	File    string `json:"file"`
	DocHash string `json:"doc_hash,omitempty"`
}

// VersionsResponse is returned by GET /api/v1/documents/:hash/versions.
type VersionsResponse struct {
	DocHash  string   `json:"doc_hash"`
	Default  string   `json:"default"`
	Versions []string `json:"versions"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status     string            `json:"status"`
	WorkerPool *queue.PoolHealth `json:"worker_pool"`
	Documents  int               `json:"documents"`
	Error      string            `json:"error,omitempty"`
}
