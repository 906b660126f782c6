package jobs

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const TaskWarmAvatars = "avatars:warm"

type WarmAvatarsPayload struct {
	Identities []string `json:"identities"`
}

// NewWarmAvatarsTask builds a task that resolves identities into the avatar
// cache. Warm-up is best effort: the task is never retried.
func NewWarmAvatarsTask(identities []string) (*asynq.Task, error) {
	clean := make([]string, 0, len(identities))
	for _, id := range identities {
		if id = strings.TrimSpace(id); id != "" {
			clean = append(clean, id)
		}
	}
	b, err := json.Marshal(WarmAvatarsPayload{Identities: clean})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWarmAvatars, b,
		asynq.TaskID(uuid.NewString()),
		asynq.MaxRetry(0),
	), nil
}
