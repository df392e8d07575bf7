package command

import (
	"context"
	"fmt"

	"assessment-engine/internal/app"
	"assessment-engine/internal/domain"
	"github.com/rs/zerolog"
)

// Actor is who sent a command and on which conversation.
type Actor struct {
	ID             string
	ConversationID string
}

func (a Actor) key() app.SessionKey {
	return app.SessionKey{ParticipantID: a.ID, ConversationID: a.ConversationID}
}

// RoleResolver looks up an actor's role.
type RoleResolver interface {
	Role(ctx context.Context, actorID string) (domain.Role, error)
}

// StaticRoles is a fixed directory; anyone not listed is a participant.
type StaticRoles struct {
	roles map[string]domain.Role
}

func NewStaticRoles(admins, operators []string) *StaticRoles {
	roles := make(map[string]domain.Role, len(admins)+len(operators))
	for _, id := range operators {
		roles[id] = domain.RoleOperator
	}
	for _, id := range admins {
		roles[id] = domain.RoleAdmin
	}
	return &StaticRoles{roles: roles}
}

func (s *StaticRoles) Role(_ context.Context, actorID string) (domain.Role, error) {
	if r, ok := s.roles[actorID]; ok {
		return r, nil
	}
	return domain.RoleParticipant, nil
}

// Reply is what a transport sends back. Messages are ready-to-send text
// chunks; Question and Final carry structured data for richer clients.
type Reply struct {
	Messages []string
	Question *domain.QuestionPrompt
	Final    *domain.FinalScore
	Ignored  bool
}

// Dispatcher checks the actor's capability once per command and routes it.
type Dispatcher struct {
	registry *app.Registry
	engine   *app.Engine
	reports  *app.Reports
	roles    RoleResolver
	log      zerolog.Logger
}

func NewDispatcher(registry *app.Registry, engine *app.Engine, reports *app.Reports, roles RoleResolver, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		engine:   engine,
		reports:  reports,
		roles:    roles,
		log:      log.With().Str("component", "dispatcher").Logger(),
	}
}

// Handle parses text and executes it on behalf of actor.
func (d *Dispatcher) Handle(ctx context.Context, actor Actor, text string) (Reply, error) {
	cmd, err := Parse(text)
	if err != nil {
		return Reply{}, err
	}
	return d.Execute(ctx, actor, cmd)
}

func (d *Dispatcher) Execute(ctx context.Context, actor Actor, cmd Command) (Reply, error) {
	role, err := d.roles.Role(ctx, actor.ID)
	if err != nil {
		return Reply{}, fmt.Errorf("resolve role: %w", err)
	}
	if need := required(cmd); !role.Can(need) {
		d.log.Warn().
			Str("actor", actor.ID).
			Str("role", string(role)).
			Str("command", cmd.Kind.String()).
			Msg("command refused")
		return Reply{}, fmt.Errorf("%s: %w", cmd.Kind, domain.ErrForbidden)
	}

	switch cmd.Kind {
	case KindActivate:
		receipt, err := d.registry.Activate(ctx, app.ActivateRequest{
			BankID:              cmd.BankID,
			EnabledBy:           actor.ID,
			QuestionsPerAttempt: cmd.QuestionsPerAttempt,
			MaxTries:            cmd.MaxTries,
			Window:              cmd.Window,
		})
		if err != nil {
			return Reply{}, err
		}
		return textReply(RenderReceipt(receipt)), nil

	case KindStatus:
		active, err := d.registry.Status(ctx, cmd.BankID)
		if err != nil {
			return Reply{}, err
		}
		return textReply(RenderStatus(cmd.BankID, active)), nil

	case KindDeactivate:
		n, err := d.registry.Deactivate(ctx, cmd.BankID, actor.ID)
		if err != nil {
			return Reply{}, err
		}
		return textReply(RenderDeactivated(cmd.BankID, n)), nil

	case KindBegin:
		prompt, err := d.engine.Start(ctx, actor.key(), cmd.BankID)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Messages: []string{RenderPrompt(prompt)}, Question: &prompt}, nil

	case KindAnswer:
		return d.answer(ctx, actor, cmd.Token)

	case KindCancel:
		if err := d.engine.Cancel(ctx, actor.key()); err != nil {
			return Reply{}, err
		}
		return textReply("Attempt cancelled."), nil

	case KindResults:
		if cmd.BankID == "" {
			results, err := d.reports.Own(ctx, actor.ID)
			if err != nil {
				return Reply{}, err
			}
			return Reply{Messages: RenderOwnResults(results)}, nil
		}
		results, err := d.reports.ForBank(ctx, cmd.BankID, actor.ID, role)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Messages: RenderBankResults(cmd.BankID, results)}, nil
	}
	return textReply(HelpText), nil
}

// Answer submits an answer token; transports with buttons call it directly.
func (d *Dispatcher) Answer(ctx context.Context, actor Actor, token string) (Reply, error) {
	return d.Execute(ctx, actor, Command{Kind: KindAnswer, Token: token})
}

// Cancel abandons the actor's live attempt.
func (d *Dispatcher) Cancel(ctx context.Context, actor Actor) (Reply, error) {
	return d.Execute(ctx, actor, Command{Kind: KindCancel})
}

func (d *Dispatcher) answer(ctx context.Context, actor Actor, token string) (Reply, error) {
	out, err := d.engine.Answer(ctx, actor.key(), token)
	if out.Final != nil {
		// An unsaved final score is still reported; err carries the failure.
		return Reply{Messages: []string{RenderFinal(*out.Final)}, Final: out.Final}, err
	}
	if err != nil {
		return Reply{}, err
	}
	if out.Ignored {
		return Reply{Ignored: true}, nil
	}
	return Reply{Messages: []string{RenderPrompt(*out.Next)}, Question: out.Next}, nil
}

func required(cmd Command) domain.Capability {
	switch cmd.Kind {
	case KindActivate, KindStatus, KindDeactivate:
		return domain.CapOperator
	case KindResults:
		if cmd.BankID != "" {
			return domain.CapOperator
		}
	}
	return domain.CapParticipant
}

func textReply(s string) Reply {
	return Reply{Messages: []string{s}}
}

// Resume re-emits the question awaiting an answer, e.g. after a reconnect.
func (d *Dispatcher) Resume(ctx context.Context, actor Actor) (Reply, error) {
	prompt, err := d.engine.Current(ctx, actor.key())
	if err != nil {
		return Reply{}, err
	}
	return Reply{Messages: []string{RenderPrompt(prompt)}, Question: &prompt}, nil
}
