// Package postgres implements the LotteryStore on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/chainlot/lottery-engine/internal/domain/lottery"
	"github.com/chainlot/lottery-engine/internal/storage"
)

// Store persists lotteries in PostgreSQL. Row locking makes ticket-range
// allocation and seed folding single indivisible steps.
type Store struct {
	db *sqlx.DB
}

var _ storage.LotteryStore = (*Store)(nil)

// New creates a Store on the given database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to the database and runs pending migrations.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := Migrate(db.DB); err != nil {
		db.Close()
		return nil, err
	}
	return New(db), nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

const lotteryColumns = `id, start_time, end_time, total_ticket_cap, winners_count,
	min_sale_percentage, ticket_price, desc_hash, desc_url, tickets_sold, seed,
	proceeds_withdrawn, created_at, updated_at`

func (s *Store) CreateLottery(ctx context.Context, lot lottery.Lottery) (lottery.Lottery, error) {
	now := time.Now().UTC()
	lot.CreatedAt = now
	lot.UpdatedAt = now

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO lotteries (start_time, end_time, total_ticket_cap, winners_count,
			min_sale_percentage, ticket_price, desc_hash, desc_url, tickets_sold,
			proceeds_withdrawn, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, FALSE, $9, $10)
		RETURNING id
	`, lot.StartTime, lot.EndTime, lot.TotalTicketCap, lot.WinnersCount,
		lot.MinSalePercentage, lot.TicketPrice, lot.DescHash, lot.DescURL,
		lot.CreatedAt, lot.UpdatedAt).Scan(&lot.ID)
	if err != nil {
		return lottery.Lottery{}, err
	}
	return lot, nil
}

func (s *Store) GetLottery(ctx context.Context, id int64) (lottery.Lottery, error) {
	var lot lottery.Lottery
	err := s.db.GetContext(ctx, &lot,
		`SELECT `+lotteryColumns+` FROM lotteries WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return lottery.Lottery{}, lottery.ErrNoSuchLottery
	}
	if err != nil {
		return lottery.Lottery{}, err
	}

	winners, err := s.winners(ctx, id)
	if err != nil {
		return lottery.Lottery{}, err
	}
	lot.Winners = winners
	return lot, nil
}

func (s *Store) CurrentLotteryID(ctx context.Context) (int64, error) {
	var id int64
	if err := s.db.GetContext(ctx, &id, `SELECT COALESCE(MAX(id), 0) FROM lotteries`); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) AppendPurchase(ctx context.Context, p lottery.PurchaseTx) (lottery.PurchaseTx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return lottery.PurchaseTx{}, err
	}
	defer tx.Rollback()

	var sold int64
	err = tx.QueryRowContext(ctx,
		`SELECT tickets_sold FROM lotteries WHERE id = $1 FOR UPDATE`, p.LotteryID).Scan(&sold)
	if errors.Is(err, sql.ErrNoRows) {
		return lottery.PurchaseTx{}, lottery.ErrNoSuchLottery
	}
	if err != nil {
		return lottery.PurchaseTx{}, err
	}

	var index int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM purchases WHERE lottery_id = $1`, p.LotteryID).Scan(&index); err != nil {
		return lottery.PurchaseTx{}, err
	}

	p.ID = uuid.NewString()
	p.StartTicketNo = sold
	_, err = tx.ExecContext(ctx, `
		INSERT INTO purchases (id, lottery_id, purchase_index, buyer, start_ticket_no,
			quantity, committed_hash, revealed, refunded, purchased_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, FALSE, $8)
	`, p.ID, p.LotteryID, index, p.Buyer, p.StartTicketNo, p.Quantity, p.CommittedHash, p.PurchasedAt)
	if err != nil {
		return lottery.PurchaseTx{}, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE lotteries SET tickets_sold = tickets_sold + $1, updated_at = $2 WHERE id = $3
	`, p.Quantity, time.Now().UTC(), p.LotteryID)
	if err != nil {
		return lottery.PurchaseTx{}, err
	}

	if err := tx.Commit(); err != nil {
		return lottery.PurchaseTx{}, err
	}
	return p, nil
}

const purchaseColumns = `id, lottery_id, buyer, start_ticket_no, quantity,
	committed_hash, revealed, revealed_secret, refunded, purchased_at`

func (s *Store) GetPurchase(ctx context.Context, lotteryID int64, index int) (lottery.PurchaseTx, error) {
	var p lottery.PurchaseTx
	err := s.db.GetContext(ctx, &p,
		`SELECT `+purchaseColumns+` FROM purchases WHERE lottery_id = $1 AND purchase_index = $2`,
		lotteryID, index)
	if errors.Is(err, sql.ErrNoRows) {
		if exists, lookupErr := s.lotteryExists(ctx, lotteryID); lookupErr == nil && !exists {
			return lottery.PurchaseTx{}, lottery.ErrNoSuchLottery
		}
		return lottery.PurchaseTx{}, lottery.ErrNoSuchPurchase
	}
	if err != nil {
		return lottery.PurchaseTx{}, err
	}
	return p, nil
}

func (s *Store) PurchaseCount(ctx context.Context, lotteryID int64) (int, error) {
	if exists, err := s.lotteryExists(ctx, lotteryID); err != nil {
		return 0, err
	} else if !exists {
		return 0, lottery.ErrNoSuchLottery
	}
	var n int
	if err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM purchases WHERE lottery_id = $1`, lotteryID); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) ListPurchases(ctx context.Context, lotteryID int64) ([]lottery.PurchaseTx, error) {
	if exists, err := s.lotteryExists(ctx, lotteryID); err != nil {
		return nil, err
	} else if !exists {
		return nil, lottery.ErrNoSuchLottery
	}
	var out []lottery.PurchaseTx
	err := s.db.SelectContext(ctx, &out,
		`SELECT `+purchaseColumns+` FROM purchases WHERE lottery_id = $1 ORDER BY purchase_index`,
		lotteryID)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) FindPurchase(ctx context.Context, lotteryID, startTicketNo int64, quantity int) (lottery.PurchaseTx, error) {
	var p lottery.PurchaseTx
	err := s.db.GetContext(ctx, &p,
		`SELECT `+purchaseColumns+` FROM purchases
		 WHERE lottery_id = $1 AND start_ticket_no = $2 AND quantity = $3`,
		lotteryID, startTicketNo, quantity)
	if errors.Is(err, sql.ErrNoRows) {
		if exists, lookupErr := s.lotteryExists(ctx, lotteryID); lookupErr == nil && !exists {
			return lottery.PurchaseTx{}, lottery.ErrNoSuchLottery
		}
		return lottery.PurchaseTx{}, lottery.ErrNoSuchPurchase
	}
	if err != nil {
		return lottery.PurchaseTx{}, err
	}
	return p, nil
}

func (s *Store) MarkRevealed(ctx context.Context, lotteryID, startTicketNo int64, secret []byte) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var seed []byte
	err = tx.QueryRowContext(ctx,
		`SELECT seed FROM lotteries WHERE id = $1 FOR UPDATE`, lotteryID).Scan(&seed)
	if errors.Is(err, sql.ErrNoRows) {
		return lottery.ErrNoSuchLottery
	}
	if err != nil {
		return err
	}

	var revealed bool
	err = tx.QueryRowContext(ctx,
		`SELECT revealed FROM purchases WHERE lottery_id = $1 AND start_ticket_no = $2 FOR UPDATE`,
		lotteryID, startTicketNo).Scan(&revealed)
	if errors.Is(err, sql.ErrNoRows) {
		return lottery.ErrNoSuchPurchase
	}
	if err != nil {
		return err
	}
	if revealed {
		return lottery.ErrAlreadyRevealed
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE purchases SET revealed = TRUE, revealed_secret = $1
		WHERE lottery_id = $2 AND start_ticket_no = $3
	`, secret, lotteryID, startTicketNo); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE lotteries SET seed = $1, updated_at = $2 WHERE id = $3
	`, lottery.FoldSeed(seed, secret), time.Now().UTC(), lotteryID); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) SetWinners(ctx context.Context, lotteryID int64, winners []int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existing int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM winners WHERE lottery_id = $1`, lotteryID).Scan(&existing)
	if err != nil {
		return err
	}
	if existing > 0 {
		return tx.Commit() // already finalized; the stored set is canonical
	}

	if exists, err := s.lotteryExistsTx(ctx, tx, lotteryID); err != nil {
		return err
	} else if !exists {
		return lottery.ErrNoSuchLottery
	}

	for order, ticketNo := range winners {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO winners (lottery_id, draw_order, ticket_no) VALUES ($1, $2, $3)
		`, lotteryID, order, ticketNo); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) GetWinners(ctx context.Context, lotteryID int64) ([]int64, error) {
	if exists, err := s.lotteryExists(ctx, lotteryID); err != nil {
		return nil, err
	} else if !exists {
		return nil, lottery.ErrNoSuchLottery
	}
	winners, err := s.winners(ctx, lotteryID)
	if err != nil {
		return nil, err
	}
	if winners == nil {
		return nil, lottery.ErrNotFinalized
	}
	return winners, nil
}

func (s *Store) ClaimProceeds(ctx context.Context, lotteryID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE lotteries SET proceeds_withdrawn = TRUE, updated_at = $1
		WHERE id = $2 AND NOT proceeds_withdrawn
	`, time.Now().UTC(), lotteryID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if exists, err := s.lotteryExists(ctx, lotteryID); err == nil && !exists {
			return lottery.ErrNoSuchLottery
		}
		return lottery.ErrAlreadyWithdrawn
	}
	return nil
}

func (s *Store) ReleaseProceeds(ctx context.Context, lotteryID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE lotteries SET proceeds_withdrawn = FALSE, updated_at = $1 WHERE id = $2
	`, time.Now().UTC(), lotteryID)
	return err
}

func (s *Store) ClaimRefund(ctx context.Context, lotteryID int64, purchaseIndex int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE purchases SET refunded = TRUE
		WHERE lottery_id = $1 AND purchase_index = $2 AND NOT refunded
	`, lotteryID, purchaseIndex)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var refunded bool
		err := s.db.GetContext(ctx, &refunded,
			`SELECT refunded FROM purchases WHERE lottery_id = $1 AND purchase_index = $2`,
			lotteryID, purchaseIndex)
		if errors.Is(err, sql.ErrNoRows) {
			return lottery.ErrNoSuchPurchase
		}
		if err != nil {
			return err
		}
		return lottery.ErrAlreadyRefunded
	}
	return nil
}

func (s *Store) ReleaseRefund(ctx context.Context, lotteryID int64, purchaseIndex int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE purchases SET refunded = FALSE WHERE lottery_id = $1 AND purchase_index = $2
	`, lotteryID, purchaseIndex)
	return err
}

func (s *Store) winners(ctx context.Context, lotteryID int64) ([]int64, error) {
	var out []int64
	err := s.db.SelectContext(ctx, &out,
		`SELECT ticket_no FROM winners WHERE lottery_id = $1 ORDER BY draw_order`, lotteryID)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) lotteryExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM lotteries WHERE id = $1)`, id)
	return exists, err
}

func (s *Store) lotteryExistsTx(ctx context.Context, tx *sqlx.Tx, id int64) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM lotteries WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}
