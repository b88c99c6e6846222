package service

import (
	"context"

	"PMessenger/module/chat/model"
	"PMessenger/tools/errs"
)

// Attachment resolves one attachment for a viewer, enforcing participancy
// in the owning conversation. The handler streams the blob afterwards.
func (s *Service) Attachment(ctx context.Context, userID, attachmentID int64) (*model.Attachment, error) {
	att, conversationID, err := s.store.GetAttachment(ctx, attachmentID)
	if err != nil {
		return nil, err
	}
	ok, err := s.policy.CanViewAttachment(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.ErrForbidden.WithDetail("not a participant")
	}
	return att, nil
}
