package plant

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-myhome/internal/action"
	"github.com/nerrad567/gray-logic-myhome/internal/infrastructure/mqtt"
)

// recordTimeout bounds the audit write for one submission.
const recordTimeout = 5 * time.Second

// Submitter accepts actions. Satisfied by *Controller.
type Submitter interface {
	SubmitAction(a *action.Action) error
}

// Publisher sends MQTT messages. Satisfied by *mqtt.Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Subscriber manages MQTT subscriptions. Satisfied by *mqtt.Client.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// SubmissionRecorder is told about every decoded submission.
// Satisfied by *audit.Recorder.
type SubmissionRecorder interface {
	ActionSubmitted(ctx context.Context, a *action.Action, submitErr error) error
}

// SubmissionCounter counts submissions by status.
// Satisfied by *metrics.Collector.
type SubmissionCounter interface {
	RecordSubmission(status string)
}

// IntakeConfig holds the dependencies for NewIntake.
type IntakeConfig struct {
	Submitter  Submitter
	Publisher  Publisher
	Subscriber Subscriber
	QoS        byte

	// Recorder and Counter are optional.
	Recorder SubmissionRecorder
	Counter  SubmissionCounter
}

// Intake turns MQTT action messages into submitted actions and publishes
// an ack for each one.
type Intake struct {
	submitter  Submitter
	publisher  Publisher
	subscriber Subscriber
	recorder   SubmissionRecorder
	counter    SubmissionCounter
	qos        byte
	topics     mqtt.Topics
	logger     Logger
}

// NewIntake creates an intake. Call Start to subscribe.
func NewIntake(cfg IntakeConfig) *Intake {
	return &Intake{
		submitter:  cfg.Submitter,
		publisher:  cfg.Publisher,
		subscriber: cfg.Subscriber,
		recorder:   cfg.Recorder,
		counter:    cfg.Counter,
		qos:        cfg.QoS,
	}
}

// SetLogger sets the logger for the intake.
func (in *Intake) SetLogger(logger Logger) {
	in.logger = logger
}

// Start subscribes to the submit topic.
func (in *Intake) Start() error {
	topic := in.topics.ActionSubmit()
	if err := in.subscriber.Subscribe(topic, in.qos, in.HandleMessage); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	in.logInfo("action intake started", "topic", topic)
	return nil
}

// Stop unsubscribes from the submit topic.
func (in *Intake) Stop() error {
	return in.subscriber.Unsubscribe(in.topics.ActionSubmit())
}

// HandleMessage decodes and submits one action message. It returns an
// error when the message is rejected; the ack has already been published
// by then whenever an action id is known.
func (in *Intake) HandleMessage(_ string, payload []byte) error {
	var msg ActionMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidMessage, err)
		in.logWarn("discarding action message", "error", err)
		in.count(AckRejected)
		return err
	}

	a, err := msg.ToAction()
	if err != nil {
		in.logWarn("rejecting action message", "error", err, "action_id", msg.ID)
		in.count(AckRejected)
		if msg.ID != "" && ValidateActionID(msg.ID) == nil {
			in.ack(msg.ID, err)
		}
		return err
	}

	submitErr := in.submitter.SubmitAction(a)
	in.record(a, submitErr)
	in.ack(a.ID(), submitErr)

	if submitErr != nil {
		in.count(AckRejected)
		in.logWarn("action rejected", "error", submitErr, "action_id", a.ID())
		return submitErr
	}

	in.count(AckAccepted)
	in.logInfo("action accepted",
		"action_id", a.ID(),
		"description", a.Description(),
		"priority", a.Priority().String(),
		"commands", a.Len(),
	)
	return nil
}

func (in *Intake) ack(actionID string, submitErr error) {
	ack := AckMessage{
		ActionID:  actionID,
		Status:    AckAccepted,
		Timestamp: time.Now().UTC(),
	}
	if submitErr != nil {
		ack.Status = AckRejected
		ack.Error = submitErr.Error()
	}

	payload, err := json.Marshal(ack)
	if err != nil {
		in.logWarn("encoding ack", "error", err, "action_id", actionID)
		return
	}
	if err := in.publisher.Publish(in.topics.ActionAck(actionID), payload, in.qos, false); err != nil {
		in.logWarn("publishing ack", "error", err, "action_id", actionID)
	}
}

func (in *Intake) record(a *action.Action, submitErr error) {
	if in.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := in.recorder.ActionSubmitted(ctx, a, submitErr); err != nil {
		in.logWarn("recording submission", "error", err, "action_id", a.ID())
	}
}

func (in *Intake) count(status AckStatus) {
	if in.counter != nil {
		in.counter.RecordSubmission(string(status))
	}
}

func (in *Intake) logInfo(msg string, keysAndValues ...any) {
	if in.logger != nil {
		in.logger.Info(msg, keysAndValues...)
	}
}

func (in *Intake) logWarn(msg string, keysAndValues ...any) {
	if in.logger != nil {
		in.logger.Warn(msg, keysAndValues...)
	}
}
