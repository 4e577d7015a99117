package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"market-connect/internal/biddingerrors"
	model "market-connect/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// auctionRow is the persisted form of an auction
type auctionRow struct {
	ID                string   `gorm:"primaryKey;size:64"`
	ProductID         string   `gorm:"index;size:64"`
	SellerID          string   `gorm:"size:64"`
	Title             string   `gorm:"size:255"`
	Images            []string `gorm:"serializer:json"`
	StartPrice        int64
	CurrentBid        int64
	MinIncrement      int64
	StartTime         time.Time `gorm:"index"`
	EndTime           time.Time
	Status            string `gorm:"index;size:16"`
	HighestBidderID   string `gorm:"size:64"`
	HighestBidderName string `gorm:"size:255"`
	Sequence          uint64
	CancelledBy       string `gorm:"size:64"`
	CancelledAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (auctionRow) TableName() string { return "auctions" }

// bidRow is the persisted form of an accepted bid
type bidRow struct {
	BidID      string `gorm:"primaryKey;size:64"`
	AuctionID  string `gorm:"uniqueIndex:idx_bid_auction_seq;size:64"`
	Sequence   uint64 `gorm:"uniqueIndex:idx_bid_auction_seq"`
	BidderID   string `gorm:"size:64"`
	BidderName string `gorm:"size:255"`
	Amount     int64
	AcceptedAt time.Time
}

func (bidRow) TableName() string { return "bids" }

// GormRepo persists auctions through GORM. The unique (auction, sequence)
// index and the sequence check in every UPDATE keep the history append-only.
type GormRepo struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) a SQLite database and migrates the schema
func OpenSQLite(dsn string) (*GormRepo, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	return NewGormRepo(db)
}

// NewGormRepo wraps an existing connection and runs migrations
func NewGormRepo(db *gorm.DB) (*GormRepo, error) {
	if err := db.AutoMigrate(&auctionRow{}, &bidRow{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &GormRepo{db: db}, nil
}

// Close releases the underlying connection pool
func (r *GormRepo) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateAuction inserts a new auction row
func (r *GormRepo) CreateAuction(ctx context.Context, auction model.Auction) error {
	row := toAuctionRow(auction)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&auctionRow{}).Where("id = ?", auction.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return biddingerrors.ErrAuctionExists
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		for _, b := range auction.BidHistory {
			br := toBidRow(b)
			if err := tx.Create(&br).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create auction %s: %w", auction.ID, err)
	}
	return nil
}

// GetAuction loads an auction with its full bid history
func (r *GormRepo) GetAuction(ctx context.Context, auctionID string) (model.Auction, error) {
	var row auctionRow
	err := r.db.WithContext(ctx).Where("id = ?", auctionID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, err)
	}

	bids, err := r.loadBids(ctx, auctionID)
	if err != nil {
		return model.Auction{}, err
	}

	a := fromAuctionRow(row)
	a.BidHistory = bids
	return a, nil
}

// ListAuctions returns auctions matching filter ordered by start time
func (r *GormRepo) ListAuctions(ctx context.Context, filter ListFilter) ([]model.Auction, error) {
	q := r.db.WithContext(ctx).Model(&auctionRow{})
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		q = q.Where("status IN ?", statuses)
	}
	if !filter.StartsAfter.IsZero() {
		q = q.Where("start_time > ?", filter.StartsAfter.UTC())
	}
	if !filter.StartsBefore.IsZero() {
		q = q.Where("start_time < ?", filter.StartsBefore.UTC())
	}

	var rows []auctionRow
	if err := q.Order("start_time ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}

	out := make([]model.Auction, 0, len(rows))
	for _, row := range rows {
		a := fromAuctionRow(row)
		if filter.IncludeBidLog {
			bids, err := r.loadBids(ctx, row.ID)
			if err != nil {
				return nil, err
			}
			a.BidHistory = bids
		}
		out = append(out, a)
	}
	return out, nil
}

// UpdateAuction writes the auction fields guarded by the previous sequence
func (r *GormRepo) UpdateAuction(ctx context.Context, auction model.Auction, prevSequence uint64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return updateGuarded(tx, auction, prevSequence)
	})
	if err != nil {
		return fmt.Errorf("update auction %s: %w", auction.ID, err)
	}
	return nil
}

// CommitBid inserts the bid and updates the auction in one transaction
func (r *GormRepo) CommitBid(ctx context.Context, auction model.Auction, bid model.Bid, prevSequence uint64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateGuarded(tx, auction, prevSequence); err != nil {
			return err
		}
		br := toBidRow(bid)
		return tx.Create(&br).Error
	})
	if err != nil {
		return fmt.Errorf("commit bid on auction %s: %w", auction.ID, err)
	}
	return nil
}

func updateGuarded(tx *gorm.DB, auction model.Auction, prevSequence uint64) error {
	row := toAuctionRow(auction)
	res := tx.Model(&auctionRow{}).
		Where("id = ? AND sequence = ?", auction.ID, prevSequence).
		Select("*").Omit("id", "created_at").
		Updates(&row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := tx.Model(&auctionRow{}).Where("id = ?", auction.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return biddingerrors.ErrAuctionNotFound
		}
		return biddingerrors.ErrSequenceConflict
	}
	return nil
}

func (r *GormRepo) loadBids(ctx context.Context, auctionID string) ([]model.Bid, error) {
	var rows []bidRow
	if err := r.db.WithContext(ctx).Where("auction_id = ?", auctionID).Order("sequence ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load bids for auction %s: %w", auctionID, err)
	}
	bids := make([]model.Bid, 0, len(rows))
	for _, row := range rows {
		bids = append(bids, model.Bid{
			BidID:      row.BidID,
			AuctionID:  row.AuctionID,
			Bidder:     model.Bidder{UserID: row.BidderID, Name: row.BidderName},
			Amount:     row.Amount,
			AcceptedAt: row.AcceptedAt.UTC(),
			Sequence:   row.Sequence,
		})
	}
	return bids, nil
}

func toAuctionRow(a model.Auction) auctionRow {
	row := auctionRow{
		ID:           a.ID,
		ProductID:    a.ProductID,
		SellerID:     a.SellerID,
		Title:        a.Title,
		Images:       a.Images,
		StartPrice:   a.StartPrice,
		CurrentBid:   a.CurrentBid,
		MinIncrement: a.MinIncrement,
		StartTime:    a.StartTime.UTC(),
		EndTime:      a.EndTime.UTC(),
		Status:       string(a.Status),
		Sequence:     a.Sequence,
		CancelledBy:  a.CancelledBy,
		CancelledAt:  a.CancelledAt,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
	if a.HighestBidder != nil {
		row.HighestBidderID = a.HighestBidder.UserID
		row.HighestBidderName = a.HighestBidder.Name
	}
	return row
}

func fromAuctionRow(row auctionRow) model.Auction {
	a := model.Auction{
		ID:           row.ID,
		ProductID:    row.ProductID,
		SellerID:     row.SellerID,
		Title:        row.Title,
		Images:       row.Images,
		StartPrice:   row.StartPrice,
		CurrentBid:   row.CurrentBid,
		MinIncrement: row.MinIncrement,
		StartTime:    row.StartTime.UTC(),
		EndTime:      row.EndTime.UTC(),
		Status:       model.Status(row.Status),
		Sequence:     row.Sequence,
		CancelledBy:  row.CancelledBy,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
	if row.CancelledAt != nil {
		ca := row.CancelledAt.UTC()
		a.CancelledAt = &ca
	}
	if row.HighestBidderID != "" {
		a.HighestBidder = &model.Bidder{UserID: row.HighestBidderID, Name: row.HighestBidderName}
	}
	return a
}

func toBidRow(b model.Bid) bidRow {
	return bidRow{
		BidID:      b.BidID,
		AuctionID:  b.AuctionID,
		Sequence:   b.Sequence,
		BidderID:   b.Bidder.UserID,
		BidderName: b.Bidder.Name,
		Amount:     b.Amount,
		AcceptedAt: b.AcceptedAt,
	}
}
