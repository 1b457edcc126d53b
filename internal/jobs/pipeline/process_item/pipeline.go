package process_item

import (
	jobrt "github.com/yungbote/frontline-backend/internal/jobs/runtime"
	"github.com/yungbote/frontline-backend/internal/jobs/tasks"
)

// Run hands the item to the ingestion pipeline. Rejections and duplicates complete the task
// with the outcome recorded as its result; errors go back to the worker for retry or deferral.
func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Task == nil {
		return nil
	}
	var item tasks.ProcessItem
	if err := jc.Decode(&item); err != nil {
		return err
	}
	res, err := p.proc.Process(jc.Ctx, item)
	if err != nil {
		return err
	}
	p.log.Debug("item processed", "task_id", jc.Task.ID, "link", item.Link, "outcome", res.Outcome, "reason", res.Reason)
	jc.Succeed(res)
	return nil
}
