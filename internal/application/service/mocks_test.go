package service

import (
	"context"
	"sync"

	"github.com/oasuite/procureflow/internal/application/dispatcher"
	"github.com/oasuite/procureflow/internal/application/port"
	"github.com/oasuite/procureflow/internal/domain/document"
	"github.com/oasuite/procureflow/internal/domain/event"
	"github.com/oasuite/procureflow/internal/domain/flow"
)

// The fakes below are in-memory stand-ins for the persistence and
// notification collaborators. They keep just enough behavior for the
// handlers to exercise their contracts: status-conditional writes, a
// restorable transaction, and recorded dispatches.

type nopLogger struct{}

func (nopLogger) Info(msg string, kv ...interface{})  {}
func (nopLogger) Warn(msg string, kv ...interface{})  {}
func (nopLogger) Error(msg string, kv ...interface{}) {}

// recordingDispatcher captures dispatched events synchronously so tests
// can assert on them without sleeping. It also records whether the
// dispatch context was already canceled at delivery time.
type recordingDispatcher struct {
	mu      sync.Mutex
	events  []*event.Event
	ctxErrs []error
}

func (d *recordingDispatcher) Subscribe(event.Type, string, dispatcher.Handler) {}

func (d *recordingDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	d.record(ctx, evt)
	return nil
}

func (d *recordingDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	d.record(ctx, evt)
}

func (d *recordingDispatcher) Close() error { return nil }

func (d *recordingDispatcher) record(ctx context.Context, evt *event.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, evt)
	d.ctxErrs = append(d.ctxErrs, ctx.Err())
}

func (d *recordingDispatcher) byType(t event.Type) []*event.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*event.Event
	for _, evt := range d.events {
		if evt.Type == t {
			out = append(out, evt)
		}
	}
	return out
}

// restorable lets the fake transaction manager undo repository writes when
// the transactional function fails.
type restorable interface {
	snapshot() func()
}

type fakeTx struct {
	repos []restorable
}

func (t *fakeTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	restores := make([]func(), 0, len(t.repos))
	for _, r := range t.repos {
		restores = append(restores, r.snapshot())
	}
	if err := fn(ctx); err != nil {
		for _, restore := range restores {
			restore()
		}
		return err
	}
	return nil
}

type fakePurchaseRepo struct {
	docs   map[int64]*document.PurchaseOrder
	nextID int64

	// undo holds pre-images for rows written under a transaction so a
	// rollback reverts only the tx's own writes — mutations made through
	// beforeApply model another transaction's committed write and must
	// survive the restore, as they would against a real database.
	undo []func()

	// beforeApply runs at the top of ApplyTransition, letting a test
	// mutate the stored row between the handler's load and its write.
	beforeApply func()
}

func newFakePurchaseRepo() *fakePurchaseRepo {
	return &fakePurchaseRepo{docs: make(map[int64]*document.PurchaseOrder)}
}

func (r *fakePurchaseRepo) snapshot() func() {
	mark := len(r.undo)
	return func() {
		for i := len(r.undo) - 1; i >= mark; i-- {
			r.undo[i]()
		}
		r.undo = r.undo[:mark]
	}
}

func (r *fakePurchaseRepo) Create(ctx context.Context, po *document.PurchaseOrder) error {
	r.nextID++
	po.ID = r.nextID
	c := *po
	r.docs[po.ID] = &c
	return nil
}

func (r *fakePurchaseRepo) GetByID(ctx context.Context, id int64) (*document.PurchaseOrder, error) {
	doc, ok := r.docs[id]
	if !ok {
		return nil, nil
	}
	c := *doc
	return &c, nil
}

func (r *fakePurchaseRepo) List(ctx context.Context, limit, offset int) ([]*document.PurchaseOrder, error) {
	out := make([]*document.PurchaseOrder, 0, len(r.docs))
	for _, doc := range r.docs {
		c := *doc
		out = append(out, &c)
	}
	return out, nil
}

func (r *fakePurchaseRepo) ApplyTransition(ctx context.Context, current *document.PurchaseOrder, patch port.PurchasePatch) (bool, error) {
	if r.beforeApply != nil {
		r.beforeApply()
	}
	doc, ok := r.docs[current.ID]
	if !ok || doc.Status != current.Status ||
		doc.PaidCents != current.PaidCents || doc.PaymentIssueOpen != current.PaymentIssueOpen {
		return false, nil
	}
	pre := *doc
	r.undo = append(r.undo, func() {
		c := pre
		r.docs[pre.ID] = &c
	})
	doc.Status = patch.Status
	doc.ReimbursementStage = patch.ReimbursementStage
	doc.PendingApproverID = patch.PendingApproverID
	doc.CurrentNodeID = patch.CurrentNodeID
	doc.PaidCents = patch.PaidCents
	doc.PaymentIssueOpen = patch.PaymentIssueOpen
	return true, nil
}

func (r *fakePurchaseRepo) UpdateInvoiceImages(ctx context.Context, id int64, images []string) error {
	if doc, ok := r.docs[id]; ok {
		doc.InvoiceImages = images
	}
	return nil
}

type fakeReimbursementRepo struct {
	docs   map[int64]*document.Reimbursement
	nextID int64

	// undo mirrors fakePurchaseRepo: rollback reverts only the tx's own
	// writes so beforeApply mutations survive, as a committed concurrent
	// write would against a real database.
	undo []func()

	beforeApply func()
}

func newFakeReimbursementRepo() *fakeReimbursementRepo {
	return &fakeReimbursementRepo{docs: make(map[int64]*document.Reimbursement)}
}

func (r *fakeReimbursementRepo) snapshot() func() {
	mark := len(r.undo)
	return func() {
		for i := len(r.undo) - 1; i >= mark; i-- {
			r.undo[i]()
		}
		r.undo = r.undo[:mark]
	}
}

func (r *fakeReimbursementRepo) Create(ctx context.Context, doc *document.Reimbursement) error {
	r.nextID++
	doc.ID = r.nextID
	c := *doc
	r.docs[doc.ID] = &c
	return nil
}

func (r *fakeReimbursementRepo) GetByID(ctx context.Context, id int64) (*document.Reimbursement, error) {
	doc, ok := r.docs[id]
	if !ok {
		return nil, nil
	}
	c := *doc
	return &c, nil
}

func (r *fakeReimbursementRepo) List(ctx context.Context, limit, offset int) ([]*document.Reimbursement, error) {
	out := make([]*document.Reimbursement, 0, len(r.docs))
	for _, doc := range r.docs {
		c := *doc
		out = append(out, &c)
	}
	return out, nil
}

func (r *fakeReimbursementRepo) ApplyTransition(ctx context.Context, current *document.Reimbursement, patch port.ReimbursementPatch) (bool, error) {
	if r.beforeApply != nil {
		r.beforeApply()
	}
	doc, ok := r.docs[current.ID]
	if !ok || doc.Status != current.Status || doc.PaidCents != current.PaidCents {
		return false, nil
	}
	pre := *doc
	r.undo = append(r.undo, func() {
		c := pre
		r.docs[pre.ID] = &c
	})
	doc.Status = patch.Status
	doc.PendingApproverID = patch.PendingApproverID
	doc.CurrentNodeID = patch.CurrentNodeID
	doc.PaidCents = patch.PaidCents
	return true, nil
}

func (r *fakeReimbursementRepo) UpdateInvoiceImages(ctx context.Context, id int64, images []string) error {
	if doc, ok := r.docs[id]; ok {
		doc.InvoiceImages = images
	}
	return nil
}

type fakeLogRepo struct {
	entries []*document.WorkflowLog
}

func (r *fakeLogRepo) snapshot() func() {
	saved := len(r.entries)
	return func() { r.entries = r.entries[:saved] }
}

func (r *fakeLogRepo) Append(ctx context.Context, entry *document.WorkflowLog) error {
	entry.ID = int64(len(r.entries) + 1)
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeLogRepo) ListByDocument(ctx context.Context, docType document.Type, docID int64) ([]*document.WorkflowLog, error) {
	var out []*document.WorkflowLog
	for _, e := range r.entries {
		if e.DocumentType == docType && e.DocumentID == docID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeFlowRepo struct {
	byID   map[int64]*flow.Workflow
	nextID int64
}

func newFakeFlowRepo() *fakeFlowRepo {
	return &fakeFlowRepo{byID: make(map[int64]*flow.Workflow)}
}

func (r *fakeFlowRepo) Create(ctx context.Context, wf *flow.Workflow) error {
	r.nextID++
	wf.ID = r.nextID
	c := *wf
	r.byID[wf.ID] = &c
	return nil
}

func (r *fakeFlowRepo) GetByID(ctx context.Context, id int64) (*flow.Workflow, error) {
	wf, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	c := *wf
	return &c, nil
}

func (r *fakeFlowRepo) GetPublished(ctx context.Context, docType string) (*flow.Workflow, error) {
	for _, wf := range r.byID {
		if wf.Published && wf.DocumentType == docType {
			c := *wf
			return &c, nil
		}
	}
	return nil, nil
}

func (r *fakeFlowRepo) Update(ctx context.Context, wf *flow.Workflow) error {
	c := *wf
	r.byID[wf.ID] = &c
	return nil
}

func (r *fakeFlowRepo) SetPublished(ctx context.Context, id int64, published bool) error {
	if wf, ok := r.byID[id]; ok {
		wf.Published = published
	}
	return nil
}

func (r *fakeFlowRepo) List(ctx context.Context, limit, offset int) ([]*flow.Workflow, error) {
	out := make([]*flow.Workflow, 0, len(r.byID))
	for _, wf := range r.byID {
		c := *wf
		out = append(out, &c)
	}
	return out, nil
}

type fakeBudget struct {
	summary *port.BudgetSummary
	err     error
}

func (b *fakeBudget) GetDepartmentBudgetSummary(ctx context.Context, purchaserID string, year int) (*port.BudgetSummary, error) {
	return b.summary, b.err
}

type fakeExpenditureRepo struct {
	records []*port.ExpenditureRecord
	failErr error
}

func (r *fakeExpenditureRepo) snapshot() func() {
	saved := len(r.records)
	return func() { r.records = r.records[:saved] }
}

func (r *fakeExpenditureRepo) Create(ctx context.Context, rec *port.ExpenditureRecord) error {
	if r.failErr != nil {
		return r.failErr
	}
	rec.ID = int64(len(r.records) + 1)
	r.records = append(r.records, rec)
	return nil
}

func (r *fakeExpenditureRepo) ListByDepartment(ctx context.Context, department string, year int) ([]*port.ExpenditureRecord, error) {
	return nil, nil
}

// fakePerms allows everything unless an allow func narrows it.
type fakePerms struct {
	allow func(actorID, key string) bool
}

func (p *fakePerms) CheckPermission(ctx context.Context, actorID, key string) (bool, error) {
	if p.allow == nil {
		return true, nil
	}
	return p.allow(actorID, key), nil
}

type fakeDirectory struct {
	members  map[string][]string
	roles    map[string][]string
	contacts map[string]port.Contact
}

func (d *fakeDirectory) UserIDsByRole(ctx context.Context, role string) ([]string, error) {
	return d.members[role], nil
}

func (d *fakeDirectory) RolesByUserID(ctx context.Context, userID string) ([]string, error) {
	return d.roles[userID], nil
}

func (d *fakeDirectory) ContactsByUserIDs(ctx context.Context, userIDs []string) ([]port.Contact, error) {
	var out []port.Contact
	for _, id := range userIDs {
		if c, ok := d.contacts[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeNotificationRepo struct {
	rows []*port.InAppNotification
}

func (r *fakeNotificationRepo) CreateBatch(ctx context.Context, notifications []*port.InAppNotification) error {
	for _, n := range notifications {
		n.ID = int64(len(r.rows) + 1)
		r.rows = append(r.rows, n)
	}
	return nil
}

func (r *fakeNotificationRepo) ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]*port.InAppNotification, error) {
	var out []*port.InAppNotification
	for _, n := range r.rows {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *fakeNotificationRepo) MarkRead(ctx context.Context, id int64) error {
	for _, n := range r.rows {
		if n.ID == id {
			n.Read = true
		}
	}
	return nil
}

type sentEmail struct {
	to      []string
	subject string
	text    string
}

type fakeEmailSender struct {
	sent []sentEmail
}

func (s *fakeEmailSender) SendEmailMessages(ctx context.Context, to []string, subject, text string) bool {
	s.sent = append(s.sent, sentEmail{to: to, subject: subject, text: text})
	return true
}

type sentSMS struct {
	content string
	target  port.SMSTarget
}

type fakeSMSSender struct {
	sent []sentSMS
}

func (s *fakeSMSSender) SendSMSTextMessage(ctx context.Context, content string, target port.SMSTarget) bool {
	s.sent = append(s.sent, sentSMS{content: content, target: target})
	return true
}
