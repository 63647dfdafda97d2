// Package memstore is an in-memory implementation of the repositories and the
// unit of work, used by usecase and handler tests. Transactions are serialized
// on a single mutex and roll back by snapshot, which mirrors the row-locked
// semantics the mysql adapter gets from SELECT ... FOR UPDATE.
package memstore

import (
	"context"
	"sync"

	"gorm.io/gorm"

	"microloan-backend/internal/domain/borrower"
	"microloan-backend/internal/domain/loan"
	"microloan-backend/internal/domain/payment"
	"microloan-backend/internal/domain/penalty"
	"microloan-backend/internal/domain/uow"
)

type Store struct {
	txMu sync.Mutex // serializes transactions, like the row lock does
	mu   sync.Mutex // guards the maps

	seq       uint64
	loans     map[uint64]*loan.Loan
	payments  map[uint64]*payment.Payment
	penalties map[uint64]*penalty.Penalty
	borrowers map[uint64]*borrower.Borrower
}

func New() *Store {
	return &Store{
		loans:     map[uint64]*loan.Loan{},
		payments:  map[uint64]*payment.Payment{},
		penalties: map[uint64]*penalty.Penalty{},
		borrowers: map[uint64]*borrower.Borrower{},
	}
}

func (s *Store) Loans() loan.Repository         { return &loanRepo{s} }
func (s *Store) Payments() payment.Repository   { return &paymentRepo{s} }
func (s *Store) Penalties() penalty.Repository  { return &penaltyRepo{s} }
func (s *Store) Borrowers() borrower.Repository { return &borrowerRepo{s} }

func (s *Store) repos() uow.Repos {
	return uow.Repos{
		Borrowers: s.Borrowers(),
		Loans:     s.Loans(),
		Payments:  s.Payments(),
		Penalties: s.Penalties(),
	}
}

type snapshot struct {
	seq       uint64
	loans     map[uint64]loan.Loan
	payments  map[uint64]payment.Payment
	penalties map[uint64]penalty.Penalty
	borrowers map[uint64]borrower.Borrower
}

func (s *Store) take() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		seq:       s.seq,
		loans:     map[uint64]loan.Loan{},
		payments:  map[uint64]payment.Payment{},
		penalties: map[uint64]penalty.Penalty{},
		borrowers: map[uint64]borrower.Borrower{},
	}
	for k, v := range s.loans {
		snap.loans[k] = *v
	}
	for k, v := range s.payments {
		snap.payments[k] = *v
	}
	for k, v := range s.penalties {
		snap.penalties[k] = *v
	}
	for k, v := range s.borrowers {
		snap.borrowers[k] = *v
	}
	return snap
}

// restore rebuilds every map from the snapshot. Rolling back is O(store),
// which is fine at test sizes; keep it a full rebuild rather than tracking
// per-key dirt, so the rollback semantics stay trivially correct.
func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = snap.seq
	s.loans = map[uint64]*loan.Loan{}
	s.payments = map[uint64]*payment.Payment{}
	s.penalties = map[uint64]*penalty.Penalty{}
	s.borrowers = map[uint64]*borrower.Borrower{}
	for k, v := range snap.loans {
		v := v
		s.loans[k] = &v
	}
	for k, v := range snap.payments {
		v := v
		s.payments[k] = &v
	}
	for k, v := range snap.penalties {
		v := v
		s.penalties[k] = &v
	}
	for k, v := range snap.borrowers {
		v := v
		s.borrowers[k] = &v
	}
}

// ---- UnitOfWork ----

var _ uow.UnitOfWork = (*Store)(nil)

func (s *Store) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	snap := s.take()
	if err := fn(s.repos()); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) WithinLoanTx(ctx context.Context, loanID string, fn func(r uow.Repos, l *loan.Loan) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	snap := s.take()
	l, err := s.Loans().GetByLoanIDForUpdate(ctx, loanID)
	if err != nil {
		return err
	}
	if err := fn(s.repos(), l); err != nil {
		s.restore(snap)
		return err
	}
	// fn worked on a copy; commit it back.
	s.mu.Lock()
	stored := *l
	s.loans[l.ID] = &stored
	s.mu.Unlock()
	return nil
}

// ---- repositories ----

type loanRepo struct{ s *Store }

func (r *loanRepo) Create(ctx context.Context, l *loan.Loan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.seq++
	l.ID = r.s.seq
	stored := *l
	r.s.loans[l.ID] = &stored
	return nil
}

func (r *loanRepo) Save(ctx context.Context, l *loan.Loan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.loans[l.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *l
	r.s.loans[l.ID] = &stored
	return nil
}

func (r *loanRepo) GetByLoanID(ctx context.Context, loanID string) (*loan.Loan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.s.loans {
		if l.LoanID == loanID {
			out := *l
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *loanRepo) GetByLoanIDForUpdate(ctx context.Context, loanID string) (*loan.Loan, error) {
	return r.GetByLoanID(ctx, loanID)
}

func (r *loanRepo) GetPendingLoanByBorrowerID(ctx context.Context, borrowerID string) (*loan.Loan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *loan.Loan
	for _, l := range r.s.loans {
		if l.BorrowerID == borrowerID && l.Status == loan.StatusPending {
			if latest == nil || l.ID > latest.ID {
				latest = l
			}
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	out := *latest
	return &out, nil
}

type paymentRepo struct{ s *Store }

func (r *paymentRepo) Create(ctx context.Context, p *payment.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.seq++
	p.ID = r.s.seq
	stored := *p
	r.s.payments[p.ID] = &stored
	return nil
}

func (r *paymentRepo) GetByReference(ctx context.Context, reference string) (*payment.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.Reference == reference {
			out := *p
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *paymentRepo) ListByLoanID(ctx context.Context, loanID uint64) ([]payment.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []payment.Payment
	for i := uint64(1); i <= r.s.seq; i++ {
		if p, ok := r.s.payments[i]; ok && p.LoanID == loanID {
			out = append(out, *p)
		}
	}
	return out, nil
}

type penaltyRepo struct{ s *Store }

func (r *penaltyRepo) Create(ctx context.Context, p *penalty.Penalty) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.seq++
	p.ID = r.s.seq
	stored := *p
	r.s.penalties[p.ID] = &stored
	return nil
}

func (r *penaltyRepo) Save(ctx context.Context, p *penalty.Penalty) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.penalties[p.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *p
	r.s.penalties[p.ID] = &stored
	return nil
}

func (r *penaltyRepo) GetByPenaltyID(ctx context.Context, penaltyID string) (*penalty.Penalty, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.penalties {
		if p.PenaltyID == penaltyID {
			out := *p
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *penaltyRepo) ListOpenByLoanID(ctx context.Context, loanID uint64) ([]*penalty.Penalty, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*penalty.Penalty
	for i := uint64(1); i <= r.s.seq; i++ {
		if p, ok := r.s.penalties[i]; ok && p.LoanID == loanID && p.Outstanding().IsPositive() {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *penaltyRepo) ListByLoanID(ctx context.Context, loanID uint64) ([]penalty.Penalty, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []penalty.Penalty
	for i := uint64(1); i <= r.s.seq; i++ {
		if p, ok := r.s.penalties[i]; ok && p.LoanID == loanID {
			out = append(out, *p)
		}
	}
	return out, nil
}

type borrowerRepo struct{ s *Store }

func (r *borrowerRepo) Create(ctx context.Context, b *borrower.Borrower) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.seq++
	b.ID = r.s.seq
	stored := *b
	r.s.borrowers[b.ID] = &stored
	return nil
}

func (r *borrowerRepo) GetByBorrowerID(ctx context.Context, borrowerID string) (*borrower.Borrower, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.borrowers {
		if b.BorrowerID == borrowerID {
			out := *b
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *borrowerRepo) GetByNationalID(ctx context.Context, nationalID string) (*borrower.Borrower, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.borrowers {
		if b.NationalID == nationalID {
			out := *b
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}
