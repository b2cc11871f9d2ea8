package debate

import (
	"context"
	"errors"
	"fmt"

	"github.com/VeriFact/VF-Backend/internal/consensus"
	"github.com/VeriFact/VF-Backend/internal/engine"
	"github.com/VeriFact/VF-Backend/internal/fact"
	"github.com/VeriFact/VF-Backend/internal/logger"
	"github.com/VeriFact/VF-Backend/internal/notify"
	"github.com/VeriFact/VF-Backend/internal/trust"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service runs the debate negotiation state machine and its community
// vote. Debate positions ride the aggregator with auto-resolve off: only
// an explicit conclusion freezes the tally.
type Service struct {
	db       *gorm.DB
	log      *logger.Logger
	cons     *consensus.Service
	trust    *trust.Service
	facts    *fact.Service
	dispatch notify.Dispatcher
	clock    engine.Clock
}

func NewService(db *gorm.DB, log *logger.Logger, cons *consensus.Service, trustSvc *trust.Service,
	facts *fact.Service, dispatch notify.Dispatcher, clock engine.Clock) *Service {

	s := &Service{
		db:       db,
		log:      log.With("component", "debate"),
		cons:     cons,
		trust:    trustSvc,
		facts:    facts,
		dispatch: dispatch,
		clock:    clock,
	}
	cons.RegisterPolicy(consensus.KindDebatePosition, consensus.Policy{
		Positive:      consensus.StatusProven,   // unused: auto-resolve is off
		Negative:      consensus.StatusDisproven,
		Disputed:      consensus.StatusDisputed,
		AutoResolve:   false,
		AllowSelfVote: false,
		RewardVoters:  false,
	})
	return s
}

// Create proposes a debate about a fact. It starts PENDING and private;
// the participant is notified and must accept before messages flow.
func (s *Service) Create(ctx context.Context, initiatorID, participantID, factID string) (*Debate, error) {
	if initiatorID == participantID {
		return nil, fmt.Errorf("a debate needs two distinct parties: %w", engine.ErrInvalidState)
	}
	if _, err := s.facts.Get(ctx, factID); err != nil {
		return nil, err
	}

	var d *Debate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		initiator, err := s.trust.Get(ctx, tx, initiatorID)
		if err != nil {
			return err
		}
		if initiator.BanLevel > 0 {
			return fmt.Errorf("user %s is banned: %w", initiatorID, engine.ErrUnauthorized)
		}
		if _, err := s.trust.Get(ctx, tx, participantID); err != nil {
			return err
		}

		v, err := s.cons.Create(ctx, tx, consensus.KindDebatePosition, initiatorID)
		if err != nil {
			return err
		}
		d = &Debate{
			ID:            uuid.NewString(),
			FactID:        factID,
			VotableID:     v.ID,
			InitiatorID:   initiatorID,
			ParticipantID: participantID,
			Status:        StatusPending,
		}
		return tx.Create(d).Error
	})
	if err != nil {
		return nil, err
	}

	if derr := s.dispatch.Dispatch(ctx, participantID, notify.TypeDebateInvite,
		"You have been challenged to a debate", map[string]string{"debate_id": d.ID}); derr != nil {
		s.log.Warn("debate invite notification failed", "debate_id", d.ID, "err", derr)
	}
	return d, nil
}

// Respond is the participant's accept or decline on a PENDING debate.
// Decline is terminal.
func (s *Service) Respond(ctx context.Context, debateID, participantID string, accept bool) (*Debate, error) {
	d, err := s.Get(ctx, debateID)
	if err != nil {
		return nil, err
	}
	if d.ParticipantID != participantID {
		return nil, fmt.Errorf("only the invited participant may respond: %w", engine.ErrUnauthorized)
	}

	target := StatusDeclined
	if accept {
		target = StatusActive
	}
	res := s.db.WithContext(ctx).Model(&Debate{}).
		Where("id = ? AND status = ?", debateID, StatusPending).
		Update("status", target)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("debate %s is not awaiting a response: %w", debateID, engine.ErrInvalidState)
	}

	msg := "Your debate challenge was declined"
	if accept {
		msg = "Your debate challenge was accepted"
	}
	if derr := s.dispatch.Dispatch(ctx, d.InitiatorID, notify.TypeDebateUpdate, msg,
		map[string]string{"debate_id": d.ID}); derr != nil {
		s.log.Warn("debate response notification failed", "debate_id", d.ID, "err", derr)
	}
	return s.Get(ctx, debateID)
}

// AddMessage appends to the debate log. Only the two named parties may
// write, only while the debate is ACTIVE and not yet published.
func (s *Service) AddMessage(ctx context.Context, debateID, senderID, body string) (*Message, error) {
	if body == "" {
		return nil, fmt.Errorf("message body is required: %w", engine.ErrInvalidState)
	}

	var m *Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, err := s.getTx(ctx, tx, debateID)
		if err != nil {
			return err
		}
		if senderID != d.InitiatorID && senderID != d.ParticipantID {
			return fmt.Errorf("only debate parties may post messages: %w", engine.ErrUnauthorized)
		}
		if d.Status != StatusActive {
			return fmt.Errorf("debate is %s, messages need an active debate: %w", d.Status, engine.ErrInvalidState)
		}
		if d.Published {
			return fmt.Errorf("debate is published, the log is frozen: %w", engine.ErrInvalidState)
		}

		var count int64
		if err := tx.Model(&Message{}).Where("debate_id = ?", debateID).Count(&count).Error; err != nil {
			return err
		}
		m = &Message{
			ID:       uuid.NewString(),
			DebateID: debateID,
			Seq:      int(count) + 1,
			SenderID: senderID,
			Body:     body,
		}
		return tx.Create(m).Error
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RequestPublish records one party's publish request. The debate goes
// public only when both parties have independently requested it. Repeat
// requests by the same party are no-ops.
func (s *Service) RequestPublish(ctx context.Context, debateID, partyID string) (*Debate, error) {
	var d *Debate
	wasPublished := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		d, err = s.getTx(ctx, tx, debateID)
		if err != nil {
			return err
		}
		if partyID != d.InitiatorID && partyID != d.ParticipantID {
			return fmt.Errorf("only debate parties may request publication: %w", engine.ErrUnauthorized)
		}
		if d.Status != StatusActive {
			return fmt.Errorf("debate is %s, publication needs an active debate: %w", d.Status, engine.ErrInvalidState)
		}
		wasPublished = d.Published

		// Write only the caller's flag and derive the published bit in SQL:
		// our flag becomes true, so published reduces to the other party's
		// column. Concurrent requests cannot clobber each other's flag.
		own, other := "initiator_publish", "participant_publish"
		if partyID == d.ParticipantID {
			own, other = other, own
		}
		res := tx.Model(&Debate{}).
			Where("id = ? AND status = ?", d.ID, StatusActive).
			Updates(map[string]interface{}{
				own:         true,
				"published": gorm.Expr(other),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("debate %s is no longer active: %w", debateID, engine.ErrInvalidState)
		}

		d, err = s.getTx(ctx, tx, debateID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if d.Published && !wasPublished {
		s.log.Info("debate published", "debate_id", d.ID)
		for _, id := range []string{d.InitiatorID, d.ParticipantID} {
			if derr := s.dispatch.Dispatch(ctx, id, notify.TypeDebateUpdate,
				"Your debate is now public and open for voting", map[string]string{"debate_id": d.ID}); derr != nil {
				s.log.Warn("debate publish notification failed", "debate_id", d.ID, "err", derr)
			}
		}
	}
	return d, nil
}

// Vote casts a community vote on a published debate. One vote per voter,
// upserted through the aggregator; the two parties themselves are barred.
func (s *Service) Vote(ctx context.Context, debateID, voterID string, supportsInitiator bool) error {
	d, err := s.Get(ctx, debateID)
	if err != nil {
		return err
	}
	if !d.Published || d.Status != StatusActive {
		return fmt.Errorf("debate is not open for voting: %w", engine.ErrInvalidState)
	}
	if voterID == d.InitiatorID || voterID == d.ParticipantID {
		return fmt.Errorf("debate parties may not vote on their own debate: %w", engine.ErrUnauthorized)
	}

	value := -1
	if supportsInitiator {
		value = 1
	}
	_, err = s.cons.CastVote(ctx, voterID, d.VotableID, value)
	return err
}

// Conclude terminates an active debate, freezing the tally and applying
// the trust rewards: winner by raw headcount (+5), and when the debate is
// flagged constructive the other side receives +2. A tie has no winner; a
// constructive tie rewards both parties +2.
func (s *Service) Conclude(ctx context.Context, debateID string, constructive bool) (*Debate, error) {
	var d *Debate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		d, err = s.getTx(ctx, tx, debateID)
		if err != nil {
			return err
		}
		if d.Status != StatusActive {
			return fmt.Errorf("debate is %s, only active debates conclude: %w", d.Status, engine.ErrInvalidState)
		}

		if err := s.cons.Close(ctx, tx, d.VotableID); err != nil {
			return err
		}

		up, down, err := s.tallyTx(ctx, tx, d.VotableID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		d.Status = StatusConcluded
		d.Constructive = constructive
		d.ConcludedAt = &now

		var winner, loser string
		switch {
		case up > down:
			winner, loser = d.InitiatorID, d.ParticipantID
		case down > up:
			winner, loser = d.ParticipantID, d.InitiatorID
		}
		if winner != "" {
			d.WinnerID = &winner
			if _, err := s.trust.ApplyDelta(ctx, tx, winner, trust.ReasonDebateWon); err != nil {
				return err
			}
			if constructive {
				if _, err := s.trust.ApplyDelta(ctx, tx, loser, trust.ReasonDebateConstructive); err != nil {
					return err
				}
			}
		} else if constructive {
			for _, id := range []string{d.InitiatorID, d.ParticipantID} {
				if _, err := s.trust.ApplyDelta(ctx, tx, id, trust.ReasonDebateConstructive); err != nil {
					return err
				}
			}
		}

		return tx.Model(&Debate{}).Where("id = ?", d.ID).Updates(map[string]interface{}{
			"status":       d.Status,
			"constructive": d.Constructive,
			"winner_id":    d.WinnerID,
			"concluded_at": d.ConcludedAt,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	for _, id := range []string{d.InitiatorID, d.ParticipantID} {
		if derr := s.dispatch.Dispatch(ctx, id, notify.TypeDebateConcluded,
			"Your debate has concluded", map[string]string{"debate_id": d.ID}); derr != nil {
			s.log.Warn("debate conclusion notification failed", "debate_id", d.ID, "err", derr)
		}
	}
	return d, nil
}

// Messages returns the debate log in order.
func (s *Service) Messages(ctx context.Context, debateID string) ([]Message, error) {
	var msgs []Message
	err := s.db.WithContext(ctx).
		Where("debate_id = ?", debateID).
		Order("seq ASC").
		Find(&msgs).Error
	return msgs, err
}

// Get loads a debate or reports ErrNotFound.
func (s *Service) Get(ctx context.Context, debateID string) (*Debate, error) {
	return s.getTx(ctx, s.db, debateID)
}

func (s *Service) getTx(ctx context.Context, tx *gorm.DB, debateID string) (*Debate, error) {
	var d Debate
	if err := tx.WithContext(ctx).First(&d, "id = ?", debateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("debate %s: %w", debateID, engine.ErrNotFound)
		}
		return nil, err
	}
	return &d, nil
}

// tallyTx counts sides inside the concluding transaction so the frozen
// tally is the one rewarded.
func (s *Service) tallyTx(ctx context.Context, tx *gorm.DB, votableID string) (up, down int, err error) {
	var rows []consensus.Vote
	if err := tx.WithContext(ctx).Where("votable_id = ?", votableID).Find(&rows).Error; err != nil {
		return 0, 0, err
	}
	for _, r := range rows {
		if r.Value > 0 {
			up++
		} else {
			down++
		}
	}
	return up, down, nil
}
