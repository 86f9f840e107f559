package session

import (
	"fmt"
	"maps"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/victornm/quizarena/internal/errors"
)

const (
	TypeLogin            = "login"
	TypeJoinLobby        = "join_lobby"
	TypeLeaveLobby       = "leave_lobby"
	TypeAnsweredQuestion = "answered_question"
	TypeUpdateScore      = "update_score"
	TypePayoutJackpot    = "payout_jackpot"
	TypeActivateItem     = "activate_item"
)

// Command is an inbound domain event. The set of variants is closed.
type Command interface {
	CommandType() string
	isCommand()
}

// Login resolves a player id from a nickname.
type Login struct {
	Nickname string `mapstructure:"user" validate:"required"`
}

// JoinLobby puts a player into the lobby of QuizID, or of the default quiz
// when QuizID is absent.
type JoinLobby struct {
	PlayerID string `mapstructure:"player_id" validate:"required"`
	QuizID   *int   `mapstructure:"quiz_id" validate:"omitempty,min=0"`
}

type LeaveLobby struct {
	PlayerID string `mapstructure:"player_id" validate:"required"`
	QuizID   *int   `mapstructure:"quiz_id" validate:"omitempty,min=0"`
}

type AnsweredQuestion struct {
	PlayerID   string `mapstructure:"player_id" validate:"required"`
	GameID     *int   `mapstructure:"game_id" validate:"required,min=0"`
	QuestionID string `mapstructure:"question_id" validate:"required"`
	AnswerID   string `mapstructure:"answer_id"`
}

// UpdateScore adds Delta to a participant's score.
type UpdateScore struct {
	PlayerID string `mapstructure:"player_id" validate:"required"`
	GameID   *int   `mapstructure:"game_id" validate:"required,min=0"`
	Delta    int    `mapstructure:"delta"`
}

type PayoutJackpot struct {
	PlayerID string `mapstructure:"player_id" validate:"required"`
	GameID   *int   `mapstructure:"game_id" validate:"required,min=0"`
}

type ActivateItem struct {
	PlayerID string `mapstructure:"player_id" validate:"required"`
	GameID   *int   `mapstructure:"game_id" validate:"required,min=0"`
	Effect   string `mapstructure:"effect" validate:"required"`
}

func (Login) CommandType() string            { return TypeLogin }
func (JoinLobby) CommandType() string        { return TypeJoinLobby }
func (LeaveLobby) CommandType() string       { return TypeLeaveLobby }
func (AnsweredQuestion) CommandType() string { return TypeAnsweredQuestion }
func (UpdateScore) CommandType() string      { return TypeUpdateScore }
func (PayoutJackpot) CommandType() string    { return TypePayoutJackpot }
func (ActivateItem) CommandType() string     { return TypeActivateItem }

func (Login) isCommand()            {}
func (JoinLobby) isCommand()        {}
func (LeaveLobby) isCommand()       {}
func (AnsweredQuestion) isCommand() {}
func (UpdateScore) isCommand()      {}
func (PayoutJackpot) isCommand()    {}
func (ActivateItem) isCommand()     {}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseCommand decodes a loosely typed payload, as it arrives from JSON or
// protobuf Struct, into its command variant. The "type" key selects the
// variant; unknown keys and missing required fields are rejected.
func ParseCommand(raw map[string]any) (Command, error) {
	typ, _ := raw["type"].(string)

	var c Command
	switch typ {
	case TypeLogin:
		c = &Login{}
	case TypeJoinLobby:
		c = &JoinLobby{}
	case TypeLeaveLobby:
		c = &LeaveLobby{}
	case TypeAnsweredQuestion:
		c = &AnsweredQuestion{}
	case TypeUpdateScore:
		c = &UpdateScore{}
	case TypePayoutJackpot:
		c = &PayoutJackpot{}
	case TypeActivateItem:
		c = &ActivateItem{}
	default:
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("unknown command type %q", typ))
	}

	fields := maps.Clone(raw)
	delete(fields, "type")

	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           c,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, errors.Internal(err)
	}

	if err := d.Decode(fields); err != nil {
		return nil, invalid(typ, err)
	}
	if err := validate.Struct(c); err != nil {
		return nil, invalid(typ, err)
	}

	return deref(c), nil
}

func deref(c Command) Command {
	switch c := c.(type) {
	case *Login:
		return *c
	case *JoinLobby:
		return *c
	case *LeaveLobby:
		return *c
	case *AnsweredQuestion:
		return *c
	case *UpdateScore:
		return *c
	case *PayoutJackpot:
		return *c
	case *ActivateItem:
		return *c
	}
	return c
}

func invalid(typ string, err error) error {
	return errors.New(errors.CodeInvalidArgument,
		errors.WithMessagef("invalid %s: %v", typ, err),
		errors.WithCause(fmt.Errorf("parse %s: %w", typ, err)))
}
