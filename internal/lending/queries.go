package lending

import (
	"context"

	"github.com/aoideee/library-api/internal/data"
)

// List returns every checkout with its user, book and overdue flag.
func (s *Service) List(ctx context.Context) ([]*data.CheckoutDetail, error) {
	return s.find(ctx, "list checkouts", data.CheckoutFilter{})
}

func (s *Service) Get(ctx context.Context, id int64) (*data.CheckoutDetail, error) {
	if id < 1 {
		return nil, data.InvalidField("id", "must be a positive integer")
	}

	detail, err := s.store.Checkouts().Get(ctx, id)
	if err != nil {
		return nil, lookupError(err, "checkout", id)
	}
	detail.Overdue = detail.IsOverdue(s.Today())
	return detail, nil
}

// ListOverdue returns active checkouts whose due date is before today.
func (s *Service) ListOverdue(ctx context.Context) ([]*data.CheckoutDetail, error) {
	return s.find(ctx, "list overdue checkouts", data.CheckoutFilter{}.Overdue(s.Today()))
}

func (s *Service) ListForUser(ctx context.Context, userID int64) ([]*data.CheckoutDetail, error) {
	return s.find(ctx, "list user checkouts", data.CheckoutFilter{}.ForUser(userID))
}

// OpenForUser returns the user's checkouts that have not been returned.
func (s *Service) OpenForUser(ctx context.Context, userID int64) ([]*data.CheckoutDetail, error) {
	return s.find(ctx, "list open checkouts", data.CheckoutFilter{}.ForUser(userID).Active())
}

func (s *Service) OverdueForUser(ctx context.Context, userID int64) ([]*data.CheckoutDetail, error) {
	return s.find(ctx, "list user overdue checkouts", data.CheckoutFilter{}.ForUser(userID).Overdue(s.Today()))
}

func (s *Service) ListForBook(ctx context.Context, bookID int64) ([]*data.CheckoutDetail, error) {
	return s.find(ctx, "list book checkouts", data.CheckoutFilter{}.ForBook(bookID))
}

func (s *Service) find(ctx context.Context, op string, filter data.CheckoutFilter) ([]*data.CheckoutDetail, error) {
	details, err := s.store.Checkouts().GetAll(ctx, filter)
	if err != nil {
		return nil, data.StoreFailure(op, err)
	}
	data.MarkOverdue(details, s.Today())
	return details, nil
}
