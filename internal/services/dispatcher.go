// internal/services/dispatcher.go
// 批次發送引擎 - 依序個人化並逐封發送

package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mail-merge/internal/config"
	"mail-merge/internal/merge"
	"mail-merge/internal/models"
)

// Observer 接收批次進度快照
// 在發送每封郵件前 (Current 為收件地址) 與取得結果後呼叫
type Observer func(status models.RunStatus)

// Dispatcher 批次發送引擎
// 一次只發送一封，依表格順序，單封失敗不中斷批次
type Dispatcher struct {
	sender MailSender
	delay  time.Duration
	logger *zap.Logger
}

// NewDispatcher 建立批次發送引擎
func NewDispatcher(cfg *config.Config, sender MailSender, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		sender: sender,
		delay:  cfg.SendDelay,
		logger: logger,
	}
}

// Sender 回傳使用中的發送服務
func (d *Dispatcher) Sender() MailSender {
	return d.sender
}

// Validate 發送前檢查 (不連線)
func (d *Dispatcher) Validate(draft *models.Draft, table *models.Table) error {
	if draft == nil {
		return models.NewValidationError("draft", "email draft is required")
	}
	if err := d.validateConfig(&draft.Config); err != nil {
		return err
	}
	if err := draft.ValidateContent(); err != nil {
		return err
	}
	if table == nil {
		return models.NewValidationError("recipients", "no recipient data loaded")
	}
	if table.EmailColumn == "" || !table.HasColumn(table.EmailColumn) {
		return models.NewValidationError("email_column", "email column is not mapped")
	}
	return nil
}

// SendAll 依序發送給表格中的每位收件人
// ctx 取消時只在列與列之間及等待期間生效，進行中的發送會完成
func (d *Dispatcher) SendAll(ctx context.Context, draft *models.Draft, table *models.Table, observer Observer) (*models.Run, error) {
	return d.sendAll(ctx, uuid.New().String(), draft, table, observer)
}

func (d *Dispatcher) sendAll(ctx context.Context, runID string, draft *models.Draft, table *models.Table, observer Observer) (*models.Run, error) {
	if err := d.Validate(draft, table); err != nil {
		return nil, err
	}
	if observer == nil {
		observer = func(models.RunStatus) {}
	}

	run := &models.Run{
		ID:        runID,
		State:     models.RunRunning,
		Total:     table.Len(),
		Results:   make([]models.SendResult, 0, table.Len()),
		StartedAt: time.Now(),
	}
	log := d.logger.With(zap.String("run_id", run.ID))
	log.Info("Bulk send started",
		zap.Int("total", run.Total),
		zap.String("provider", d.sender.Name()),
		zap.Int("attachments", len(draft.Attachments)),
	)

	stopped := false
	for i, row := range table.Rows {
		if ctx.Err() != nil {
			stopped = true
			break
		}

		email := table.Email(row)
		name := table.Name(row)
		if !models.IsPlausibleEmail(email) {
			run.Skipped++
			log.Warn("Skipping row without a valid email", zap.Int("row", i+1), zap.String("email", email))
			continue
		}

		fields := row.Fields()
		subject := merge.Render(draft.Subject, fields)
		body := merge.Render(draft.Body, fields)

		observer(run.Snapshot(email))

		// 取消不會中斷進行中的發送
		err := d.sender.SendOne(context.WithoutCancel(ctx), &draft.Config, email, subject, body, draft.Attachments)

		result := models.SendResult{
			Email:  email,
			Name:   name,
			Row:    row,
			Status: models.StatusSent,
			SentAt: time.Now(),
		}
		if err != nil {
			result.Status = models.StatusFailed
			result.Reason = models.SendReasonOf(err)
			result.Error = err.Error()
			log.Warn("Email failed",
				zap.Int("row", i+1),
				zap.String("to", email),
				zap.String("reason", string(result.Reason)),
				zap.Error(err),
			)
		} else {
			log.Info("Email sent", zap.Int("row", i+1), zap.String("to", email))
		}

		run.Results = append(run.Results, result)
		observer(run.Snapshot(""))

		if i < len(table.Rows)-1 && !d.wait(ctx) {
			stopped = true
			break
		}
	}

	finished := time.Now()
	run.FinishedAt = &finished
	if stopped {
		run.State = models.RunStopped
	} else {
		run.State = models.RunCompleted
	}

	sent, failed := run.Counts()
	log.Info("Bulk send finished",
		zap.String("state", string(run.State)),
		zap.Int("sent", sent),
		zap.Int("failed", failed),
		zap.Int("skipped", run.Skipped),
		zap.Duration("elapsed", finished.Sub(run.StartedAt)),
	)
	observer(run.Snapshot(""))

	return run, nil
}

// wait 等待發送間隔，被取消時回傳 false
func (d *Dispatcher) wait(ctx context.Context) bool {
	if d.delay <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// SendTest 快速測試，不需要收件人表格
// {Name} 以名稱或收件地址替換
func (d *Dispatcher) SendTest(ctx context.Context, draft *models.Draft, to, name string) error {
	if err := d.validateSingle(draft, to); err != nil {
		return err
	}

	fields := merge.QuickTestFields(to, name)
	subject := merge.Render(draft.Subject, fields)
	body := merge.Render(draft.Body, fields)

	if err := d.sender.SendOne(ctx, &draft.Config, to, subject, body, draft.Attachments); err != nil {
		d.logger.Warn("Test email failed", zap.String("to", to), zap.Error(err))
		return err
	}

	d.logger.Info("Test email sent", zap.String("to", to))
	return nil
}

// SendPreviewRow 發送表格中某一列的個人化郵件
// overrideTo 有值時改寄到該地址
func (d *Dispatcher) SendPreviewRow(ctx context.Context, draft *models.Draft, table *models.Table, index int, overrideTo string) (merge.Preview, error) {
	if err := d.Validate(draft, table); err != nil {
		return merge.Preview{}, err
	}

	preview, err := merge.RenderPreview(table, index, draft.Template())
	if err != nil {
		return merge.Preview{}, err
	}

	to := preview.To
	if overrideTo != "" {
		to = overrideTo
	}
	if !models.IsPlausibleEmail(to) {
		return preview, models.NewValidationError("to", "recipient email is not a valid address")
	}

	if err := d.sender.SendOne(ctx, &draft.Config, to, preview.Subject, preview.Body, draft.Attachments); err != nil {
		d.logger.Warn("Preview email failed", zap.Int("row", index+1), zap.String("to", to), zap.Error(err))
		return preview, err
	}

	d.logger.Info("Preview email sent", zap.Int("row", index+1), zap.String("to", to))
	return preview, nil
}

// TestConnection 測試連線與認證
func (d *Dispatcher) TestConnection(ctx context.Context, cfg *models.SMTPConfig) error {
	if err := d.validateConfig(cfg); err != nil {
		return err
	}
	return d.sender.TestConnection(ctx, cfg)
}

func (d *Dispatcher) validateConfig(cfg *models.SMTPConfig) error {
	if v, ok := d.sender.(ConfigValidator); ok {
		return v.ValidateConfig(cfg)
	}
	return cfg.Validate()
}

func (d *Dispatcher) validateSingle(draft *models.Draft, to string) error {
	if draft == nil {
		return models.NewValidationError("draft", "email draft is required")
	}
	if err := d.validateConfig(&draft.Config); err != nil {
		return err
	}
	if err := draft.ValidateContent(); err != nil {
		return err
	}
	if !models.IsPlausibleEmail(to) {
		return models.NewValidationError("to", "recipient email is not a valid address")
	}
	return nil
}
