package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/AnshRaj112/globalchat/internal/models"
)

type fakeView struct {
	mu          sync.Mutex
	authVisible bool
	chatVisible bool
	form        Form
	authMessage string
	userLabel   string
	order       []string
	messages    map[string]Rendered
	scrolls     int
	textCleared int
	fileCleared int
	alerts      []string
}

func newFakeView() *fakeView {
	return &fakeView{messages: map[string]Rendered{}}
}

func (v *fakeView) ShowAuth() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.authVisible, v.chatVisible = true, false
}

func (v *fakeView) ShowChat() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.authVisible, v.chatVisible = false, true
}

func (v *fakeView) ShowForm(form Form) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.form = form
}

func (v *fakeView) SetAuthMessage(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.authMessage = text
}

func (v *fakeView) SetUserLabel(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.userLabel = text
}

func (v *fakeView) ClearMessages() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.order = nil
	v.messages = map[string]Rendered{}
}

func (v *fakeView) AppendMessage(msg Rendered) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.order = append(v.order, msg.ID)
	v.messages[msg.ID] = msg
}

func (v *fakeView) RemoveMessage(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.messages, id)
	for i, o := range v.order {
		if o == id {
			v.order = append(v.order[:i], v.order[i+1:]...)
			break
		}
	}
}

func (v *fakeView) ScrollToEnd() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.scrolls++
}

func (v *fakeView) ClearTextInput() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.textCleared++
}

func (v *fakeView) ClearFileInput() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fileCleared++
}

func (v *fakeView) Alert(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.alerts = append(v.alerts, text)
}

func (v *fakeView) rendered() []Rendered {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Rendered, 0, len(v.order))
	for _, id := range v.order {
		out = append(out, v.messages[id])
	}
	return out
}

// fakeAuth is an in-memory identity service that notifies listeners
// synchronously, like the platform SDK does after a completed call.
type fakeAuth struct {
	mu         sync.Mutex
	accounts   map[string]fakeAccount
	current    *models.Identity
	listeners  map[int]func(*models.Identity)
	nextID     int
	registered int
	signOutErr error
}

type fakeAccount struct {
	identity models.Identity
	password string
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{accounts: map[string]fakeAccount{}, listeners: map[int]func(*models.Identity){}}
}

func (a *fakeAuth) addAccount(id, email, password string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.accounts[email] = fakeAccount{identity: models.Identity{ID: id, Email: email}, password: password}
}

func (a *fakeAuth) Register(ctx context.Context, email, password string) (models.Identity, error) {
	a.mu.Lock()
	a.registered++
	if _, ok := a.accounts[email]; ok {
		a.mu.Unlock()
		return models.Identity{}, errors.New("email already in use")
	}
	a.nextID++
	id := models.Identity{ID: fmt.Sprintf("uid-%04d", a.nextID), Email: email}
	a.accounts[email] = fakeAccount{identity: id, password: password}
	a.mu.Unlock()
	a.setCurrent(&id)
	return id, nil
}

func (a *fakeAuth) Authenticate(ctx context.Context, email, password string) (models.Identity, error) {
	a.mu.Lock()
	acc, ok := a.accounts[email]
	a.mu.Unlock()
	if !ok || acc.password != password {
		return models.Identity{}, errors.New("invalid email or password")
	}
	a.setCurrent(&acc.identity)
	return acc.identity, nil
}

func (a *fakeAuth) SignInWithProvider(ctx context.Context, provider Provider) (models.Identity, error) {
	ext, err := provider.Authorize(ctx)
	if err != nil {
		return models.Identity{}, err
	}
	id := models.Identity{ID: provider.Name() + ":" + ext.Subject, Email: ext.Email, DisplayName: ext.Name}
	a.setCurrent(&id)
	return id, nil
}

func (a *fakeAuth) SignOut(ctx context.Context) error {
	if a.signOutErr != nil {
		return a.signOutErr
	}
	a.setCurrent(nil)
	return nil
}

func (a *fakeAuth) OnIdentityChanged(fn func(*models.Identity)) func() {
	a.mu.Lock()
	a.nextID++
	key := a.nextID
	a.listeners[key] = fn
	cur := a.current
	a.mu.Unlock()
	fn(cur)
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.listeners, key)
	}
}

func (a *fakeAuth) setCurrent(id *models.Identity) {
	a.mu.Lock()
	a.current = id
	fns := make([]func(*models.Identity), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.Unlock()
	for _, fn := range fns {
		fn(id)
	}
}

// fakeMessages is an in-memory collection that enforces author-only deletes
// against the identity held by auth.
type fakeMessages struct {
	mu       sync.Mutex
	auth     *fakeAuth
	records  []models.Message
	subs     map[int]func([]models.Change)
	nextSub  int
	nextID   int
	addErr   error
	deletes  int
	lastSubs []func([]models.Change)
}

func newFakeMessages(auth *fakeAuth) *fakeMessages {
	return &fakeMessages{auth: auth, subs: map[int]func([]models.Change){}}
}

func (m *fakeMessages) Add(ctx context.Context, msg models.NewMessage) (string, error) {
	m.mu.Lock()
	if m.addErr != nil {
		m.mu.Unlock()
		return "", m.addErr
	}
	m.nextID++
	rec := models.Message{
		ID:      fmt.Sprintf("m%d", m.nextID),
		UserID:  msg.UserID,
		Kind:    msg.Kind,
		Text:    msg.Text,
		FileURL: msg.FileURL,
	}
	if err := rec.Validate(); err != nil {
		m.mu.Unlock()
		return "", err
	}
	m.records = append(m.records, rec)
	m.mu.Unlock()
	m.emit([]models.Change{{Type: models.ChangeAdded, Message: rec}})
	return rec.ID, nil
}

func (m *fakeMessages) Delete(ctx context.Context, id string) error {
	m.auth.mu.Lock()
	cur := m.auth.current
	m.auth.mu.Unlock()

	m.mu.Lock()
	m.deletes++
	idx := -1
	for i, r := range m.records {
		if r.ID == id {
			idx = i
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return errors.New("not found")
	}
	if cur == nil || m.records[idx].UserID != cur.ID {
		m.mu.Unlock()
		return errors.New("permission denied")
	}
	rec := m.records[idx]
	m.records = append(m.records[:idx], m.records[idx+1:]...)
	m.mu.Unlock()
	m.emit([]models.Change{{Type: models.ChangeRemoved, Message: models.Message{ID: rec.ID}}})
	return nil
}

func (m *fakeMessages) Subscribe(ctx context.Context, handler func([]models.Change)) (Subscription, error) {
	m.mu.Lock()
	m.nextSub++
	key := m.nextSub
	m.subs[key] = handler
	m.lastSubs = append(m.lastSubs, handler)
	snapshot := make([]models.Change, 0, len(m.records))
	for _, r := range m.records {
		snapshot = append(snapshot, models.Change{Type: models.ChangeAdded, Message: r})
	}
	m.mu.Unlock()

	handler(snapshot)
	return cancelFunc(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, key)
	}), nil
}

func (m *fakeMessages) emit(changes []models.Change) {
	m.mu.Lock()
	hs := make([]func([]models.Change), 0, len(m.subs))
	for _, h := range m.subs {
		hs = append(hs, h)
	}
	m.mu.Unlock()
	for _, h := range hs {
		h(changes)
	}
}

func (m *fakeMessages) subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

func (m *fakeMessages) record(id string) (models.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == id {
			return r, true
		}
	}
	return models.Message{}, false
}

type cancelFunc func()

func (f cancelFunc) Cancel() { f() }

type fakeObjects struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	uploadErr error
	urlErr    error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{blobs: map[string][]byte{}}
}

func (o *fakeObjects) Upload(ctx context.Context, path string, file File) (string, error) {
	if o.uploadErr != nil {
		return "", o.uploadErr
	}
	data, err := io.ReadAll(file.Body)
	if err != nil {
		return "", err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.blobs[path] = data
	return path, nil
}

func (o *fakeObjects) DownloadURL(ctx context.Context, ref string) (string, error) {
	if o.urlErr != nil {
		return "", o.urlErr
	}
	return "https://objects.example.com/" + ref, nil
}

func (o *fakeObjects) paths() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.blobs))
	for p := range o.blobs {
		out = append(out, p)
	}
	return out
}

type fakeChallenge struct {
	rendered  int
	verified  int
	resets    int
	verifyErr error
}

func (c *fakeChallenge) Render(ctx context.Context) error { c.rendered++; return nil }
func (c *fakeChallenge) Verify(ctx context.Context) error { c.verified++; return c.verifyErr }
func (c *fakeChallenge) Reset()                           { c.resets++ }

type fakeProvider struct {
	name    string
	account models.ExternalAccount
	err     error
}

func (p fakeProvider) Name() string { return p.name }

func (p fakeProvider) Authorize(ctx context.Context) (models.ExternalAccount, error) {
	return p.account, p.err
}
