package queue

import (
	"encoding/json"

	"github.com/pasaph/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskCustomsCheck 免税额度重新评估任务
	TaskCustomsCheck = constants.TaskCustomsCheck
)

// CustomsCheckPayload 免税额度评估任务载荷
type CustomsCheckPayload struct {
	SellerID string `json:"seller_id"`
	Reason   string `json:"reason,omitempty"`
}

// NewCustomsCheckTask 创建免税额度评估任务
func NewCustomsCheckTask(payload CustomsCheckPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCustomsCheck, body), nil
}

// ParseCustomsCheckPayload 解析任务载荷
func ParseCustomsCheckPayload(task *asynq.Task) (CustomsCheckPayload, error) {
	var payload CustomsCheckPayload
	if task == nil {
		return payload, nil
	}
	err := json.Unmarshal(task.Payload(), &payload)
	return payload, err
}
