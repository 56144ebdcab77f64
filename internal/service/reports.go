package service

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"kasirpos/backend/internal/access"
	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/poserr"
	"kasirpos/backend/internal/report"
)

type ReportQuery struct {
	Filter report.Filter
	// MerchantID narrows a platform operator to one merchant. Everyone else
	// is pinned to their own merchant.
	MerchantID string
	// Refresh forces a new fetch instead of refiltering the last snapshot.
	Refresh bool
}

type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// reportScope returns the merchant the caller's report is confined to. An
// empty id with all=true means every merchant.
func reportScope(sess domain.Session, requested string) (merchantID string, all bool, err error) {
	scope, everyMerchant := access.For(sess).MerchantScope(sess)
	if everyMerchant {
		if requested == "" || requested == domain.FilterAll {
			return "", true, nil
		}
		return requested, false, nil
	}
	if scope == "" {
		return "", false, access.ErrForbidden
	}
	return scope, false, nil
}

func (s *Service) pipeline(st *sessionState, key string) *report.Pipeline {
	st.mu.Lock()
	defer st.mu.Unlock()
	p, ok := st.pipelines[key]
	if !ok {
		p = report.NewPipeline()
		st.pipelines[key] = p
	}
	return p
}

// SalesReport filters and aggregates the caller's visible transactions. The
// first call and every Refresh fetch a new snapshot; other calls refilter
// the last one.
func (s *Service) SalesReport(ctx context.Context, q ReportQuery) (report.Result, error) {
	sess, err := requireSession(ctx)
	if err != nil {
		return report.Result{}, err
	}
	merchantID, all, err := reportScope(sess, q.MerchantID)
	if err != nil {
		return report.Result{}, err
	}

	p := s.pipeline(s.state(sess.UID), merchantID)
	if q.Refresh || !p.Loaded() {
		snapshot, err := s.reload(ctx, p, sess, merchantID, all)
		if err != nil {
			return report.Result{}, err
		}
		return snapshot.Apply(q.Filter, sess), nil
	}
	return p.Apply(q.Filter, sess), nil
}

// reload fetches transactions, outlets and kasirs concurrently and commits
// them as one snapshot. A failure clears the snapshot. The fetched snapshot
// is returned even when a newer reload superseded it.
func (s *Service) reload(ctx context.Context, p *report.Pipeline, sess domain.Session, merchantID string, all bool) (report.Snapshot, error) {
	ticket := p.Begin()

	outletIDs, everyOutlet := access.For(sess).AllowedOutlets(sess)
	if !everyOutlet && len(outletIDs) == 0 {
		snapshot := report.Snapshot{FetchedAt: s.now().UTC()}
		p.Commit(ticket, snapshot)
		return snapshot, nil
	}

	query := domain.TransactionQuery{MerchantID: merchantID}
	if !everyOutlet && len(outletIDs) == 1 {
		query.OutletID = outletIDs[0]
	}

	var (
		transactions []domain.Transaction
		outlets      []domain.Outlet
		kasirs       []domain.UserAccount
		mu           sync.Mutex
	)

	merchants := []string{merchantID}
	if all {
		list, err := s.repo.ListMerchants(ctx)
		if err != nil {
			fetchErr := &poserr.FetchError{Resource: "merchants", Err: err}
			p.Fail(ticket, fetchErr)
			return report.Snapshot{}, fetchErr
		}
		merchants = merchants[:0]
		for _, m := range list {
			merchants = append(merchants, m.ID)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		txs, err := s.repo.ListTransactions(gctx, query)
		if err != nil {
			return &poserr.FetchError{Resource: "transactions", Err: err}
		}
		transactions = txs
		return nil
	})
	for _, id := range merchants {
		g.Go(func() error {
			list, err := s.repo.ListOutlets(gctx, id)
			if err != nil {
				return &poserr.FetchError{Resource: "outlets", Err: err}
			}
			mu.Lock()
			outlets = append(outlets, list...)
			mu.Unlock()
			return nil
		})
		g.Go(func() error {
			list, err := s.repo.ListUsers(gctx, id, domain.RoleKasir)
			if err != nil {
				return &poserr.FetchError{Resource: "kasirs", Err: err}
			}
			mu.Lock()
			kasirs = append(kasirs, list...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if p.Fail(ticket, err) {
			s.lg.Warn("report fetch failed", zap.String("uid", sess.UID), zap.String("merchant_id", merchantID), zap.Error(err))
		}
		return report.Snapshot{}, err
	}

	snapshot := report.Snapshot{
		Transactions: transactions,
		Directory:    report.NewDirectory(outlets, kasirs),
		FetchedAt:    s.now().UTC(),
	}
	if !p.Commit(ticket, snapshot) {
		s.lg.Debug("report snapshot superseded", zap.String("uid", sess.UID), zap.String("merchant_id", merchantID))
	}
	return snapshot, nil
}

// ExportSalesReport renders the filtered report. An empty result is refused
// and nothing is returned when rendering fails.
func (s *Service) ExportSalesReport(ctx context.Context, q ReportQuery, format string) (ExportFile, error) {
	renderer, err := report.RendererFor(format)
	if err != nil {
		return ExportFile{}, err
	}
	result, err := s.SalesReport(ctx, q)
	if err != nil {
		return ExportFile{}, err
	}
	sess, _ := access.SessionFrom(ctx)

	now := s.now()
	desc := report.Describe(q.Filter, sess, result.Directory, now, s.loc)
	doc := report.BuildDocument(result.Transactions, result.Summary.Totals, desc, result.Directory)

	var buf bytes.Buffer
	if err := report.Export(&buf, doc, renderer); err != nil {
		if poserr.IsExport(err) {
			s.lg.Error("report export failed", zap.String("format", renderer.Format()), zap.Error(err))
		}
		return ExportFile{}, err
	}

	s.logAudit(ctx, sess.MerchantID, "report_export", "report", renderer.Format(),
		fmt.Sprintf("rows=%d,total=%.2f", len(doc.Rows), doc.Totals.TotalAmount))
	return ExportFile{
		Filename:    report.Filename(renderer, now.In(s.loc)),
		ContentType: renderer.ContentType(),
		Body:        buf.Bytes(),
	}, nil
}
