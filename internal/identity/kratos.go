package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	kratos "github.com/ory/kratos-client-go"

	"github.com/hitoshi/vidshare/internal/model"
)

// NewKratosClient はKratos Public API用のクライアントを生成する。
// API（ネイティブ）フローを使うためCookieは扱わず、X-Session-Tokenで認証する。
func NewKratosClient(publicURL string, timeout time.Duration) *kratos.APIClient {
	cfg := kratos.NewConfiguration()
	cfg.Servers = kratos.ServerConfigurations{{URL: publicURL}}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	cfg.DefaultHeader = map[string]string{"Accept": "application/json"}
	return kratos.NewAPIClient(cfg)
}

// KratosProvider はOry KratosのネイティブフローによるProvider実装。
// 1つのブラウザクライアントに1インスタンスを割り当て、
// そのクライアントのセッショントークンをTokenStoreに保持する。
type KratosProvider struct {
	api      *kratos.APIClient
	clientID string
	tokens   *TokenStore
	events   *Broadcaster
	interval time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	last *model.Session // 直近に観測したセッション（Watchの差分検出用）

	stopOnce sync.Once
	stop     chan struct{}
}

// NewKratosProvider はKratosProviderを生成する。
// intervalはWatchでのセッション確認間隔。
func NewKratosProvider(api *kratos.APIClient, clientID string, tokens *TokenStore, interval time.Duration, logger *slog.Logger) *KratosProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &KratosProvider{
		api:      api,
		clientID: clientID,
		tokens:   tokens,
		events:   NewBroadcaster(),
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Subscribe はセッション変化の通知チャネルを返す。
func (p *KratosProvider) Subscribe() (<-chan SessionEvent, Unsubscribe) {
	return p.events.Subscribe()
}

// CurrentSession は保存済みトークンでKratosに問い合わせ、現在のセッションを返す。
// トークンがない場合や無効な場合はnilを返す。
func (p *KratosProvider) CurrentSession(ctx context.Context) (*model.Session, error) {
	token, err := p.tokens.Load(ctx, p.clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session token: %w", err)
	}
	if token == "" {
		return nil, nil
	}

	sess, err := p.whoami(ctx, token)
	if err != nil {
		return nil, err
	}
	p.remember(sess)
	return sess, nil
}

// SignInWithPassword はネイティブログインフローでパスワード認証する。
// 成功時はトークンを保存し、signed_inを通知する。
func (p *KratosProvider) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	flow, resp, err := p.api.FrontendAPI.CreateNativeLoginFlow(ctx).Execute()
	if err != nil {
		return nil, providerError(err, resp, "ログインフローの開始に失敗しました")
	}

	body := kratos.UpdateLoginFlowWithPasswordMethod{
		Identifier: email,
		Password:   password,
		Method:     "password",
	}
	result, resp, err := p.api.FrontendAPI.
		UpdateLoginFlow(ctx).
		Flow(flow.Id).
		UpdateLoginFlowBody(kratos.UpdateLoginFlowWithPasswordMethodAsUpdateLoginFlowBody(&body)).
		Execute()
	if err != nil {
		return nil, providerError(err, resp, "ログインに失敗しました")
	}

	kratosSession := result.GetSession()
	sess := toModelSession(&kratosSession, result.GetSessionToken())
	if !Commit(ctx) {
		p.revokeAbandoned(ctx, sess)
		return sess, nil
	}
	if err := p.tokens.Save(ctx, p.clientID, sess.Token, sess.ExpiresAt); err != nil {
		return nil, fmt.Errorf("failed to save session token: %w", err)
	}

	p.logger.Info("signed in",
		slog.String("client_id", p.clientID),
		slog.String("identity_id", sess.IdentityID()),
	)
	p.remember(sess)
	p.events.Publish(SessionEvent{Kind: EventSignedIn, Session: sess})
	return sess, nil
}

// SignUp はネイティブ登録フローでidentityを作成する。
// Kratosが登録後セッションを発行した場合はトークンを保存し、signed_inを通知する。
func (p *KratosProvider) SignUp(ctx context.Context, email, password string, meta SignUpMetadata) (*model.Identity, error) {
	flow, resp, err := p.api.FrontendAPI.CreateNativeRegistrationFlow(ctx).Execute()
	if err != nil {
		return nil, providerError(err, resp, "登録フローの開始に失敗しました")
	}

	body := kratos.UpdateRegistrationFlowWithPasswordMethod{
		Method:   "password",
		Password: password,
		Traits: map[string]interface{}{
			"email":    email,
			"username": meta.Username,
		},
	}
	result, resp, err := p.api.FrontendAPI.
		UpdateRegistrationFlow(ctx).
		Flow(flow.Id).
		UpdateRegistrationFlowBody(kratos.UpdateRegistrationFlowWithPasswordMethodAsUpdateRegistrationFlowBody(&body)).
		Execute()
	if err != nil {
		return nil, providerError(err, resp, "アカウントの作成に失敗しました")
	}

	kratosIdentity := result.GetIdentity()
	ident := toModelIdentity(&kratosIdentity)

	if result.Session != nil && result.GetSessionToken() != "" {
		sess := toModelSession(result.Session, result.GetSessionToken())
		if sess.Identity == nil {
			sess.Identity = ident
		}
		if !Commit(ctx) {
			p.revokeAbandoned(ctx, sess)
			return ident, nil
		}
		if err := p.tokens.Save(ctx, p.clientID, sess.Token, sess.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to save session token: %w", err)
		}
		p.remember(sess)
		p.events.Publish(SessionEvent{Kind: EventSignedIn, Session: sess})
	}

	p.logger.Info("identity registered",
		slog.String("client_id", p.clientID),
		slog.String("identity_id", ident.ID),
	)
	return ident, nil
}

// SignOut はセッショントークンを失効させ、signed_outを通知する。
// 失敗時はトークンを保持したままエラーを返す。
func (p *KratosProvider) SignOut(ctx context.Context) error {
	token, err := p.tokens.Load(ctx, p.clientID)
	if err != nil {
		return fmt.Errorf("failed to load session token: %w", err)
	}

	if token != "" {
		resp, err := p.api.FrontendAPI.
			PerformNativeLogout(ctx).
			PerformNativeLogoutBody(*kratos.NewPerformNativeLogoutBody(token)).
			Execute()
		// 401はトークンが既に無効であり、サインアウト済みとして扱う
		if err != nil && (resp == nil || resp.StatusCode != http.StatusUnauthorized) {
			return providerError(err, resp, "ログアウトに失敗しました")
		}
		if err := p.tokens.Clear(ctx, p.clientID); err != nil {
			return fmt.Errorf("failed to clear session token: %w", err)
		}
	}

	p.logger.Info("signed out", slog.String("client_id", p.clientID))
	p.remember(nil)
	p.events.Publish(SessionEvent{Kind: EventSignedOut})
	return nil
}

// Watch はCloseされるかctxがキャンセルされるまで、一定間隔でセッションを確認する。
// 失効を検出するとsigned_outを、有効期限の変化を検出するとtoken_refreshedを通知する。
func (p *KratosProvider) Watch(ctx context.Context) {
	if p.interval <= 0 {
		return
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-ticker.C:
			p.check(ctx)
		}
	}
}

// check はセッションを1回確認し、変化があれば通知する。
func (p *KratosProvider) check(ctx context.Context) {
	p.mu.Lock()
	prev := p.last
	p.mu.Unlock()

	if prev == nil {
		return
	}

	sess, err := p.whoami(ctx, prev.Token)
	if err != nil {
		// 一時的な障害ではセッションを維持する
		p.logger.Warn("session check failed",
			slog.String("client_id", p.clientID),
			slog.String("error", err.Error()),
		)
		return
	}

	if sess == nil {
		if err := p.tokens.Clear(ctx, p.clientID); err != nil {
			p.logger.Warn("failed to clear expired session token",
				slog.String("client_id", p.clientID),
				slog.String("error", err.Error()),
			)
		}
		p.remember(nil)
		p.logger.Info("session expired", slog.String("client_id", p.clientID))
		p.events.Publish(SessionEvent{Kind: EventSignedOut})
		return
	}

	p.remember(sess)
	if !sess.ExpiresAt.Equal(prev.ExpiresAt) {
		p.events.Publish(SessionEvent{Kind: EventTokenRefreshed, Session: sess})
	}
}

// Close はWatchを停止し、全購読を終了する。
func (p *KratosProvider) Close() {
	p.stopOnce.Do(func() {
		close(p.stop)
		p.events.Close()
	})
}

// whoami はトークンに対応するセッションを返す。
// 401（未認証・失効）または非アクティブなセッションの場合はnilを返す。
func (p *KratosProvider) whoami(ctx context.Context, token string) (*model.Session, error) {
	s, resp, err := p.api.FrontendAPI.ToSession(ctx).XSessionToken(token).Execute()
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, nil
		}
		return nil, providerError(err, resp, "セッションの確認に失敗しました")
	}
	if s.Active != nil && !*s.Active {
		return nil, nil
	}
	return toModelSession(s, token), nil
}

// revokeAbandoned は呼び出し側が破棄したログイン結果のセッションを失効させる。
// トークンは保存せず、通知も行わない。
func (p *KratosProvider) revokeAbandoned(ctx context.Context, sess *model.Session) {
	p.logger.Warn("revoking session established after caller gave up",
		slog.String("client_id", p.clientID),
		slog.String("identity_id", sess.IdentityID()),
	)
	_, err := p.api.FrontendAPI.
		PerformNativeLogout(ctx).
		PerformNativeLogoutBody(*kratos.NewPerformNativeLogoutBody(sess.Token)).
		Execute()
	if err != nil {
		p.logger.Warn("failed to revoke abandoned session",
			slog.String("client_id", p.clientID),
			slog.String("error", err.Error()),
		)
	}
}

func (p *KratosProvider) remember(sess *model.Session) {
	p.mu.Lock()
	p.last = sess
	p.mu.Unlock()
}

// providerError はKratosのエラーをProviderErrorに変換する。
// レスポンスボディにKratosのメッセージがあればそれをそのまま使う。
func providerError(err error, resp *http.Response, fallback string) error {
	var openAPIErr *kratos.GenericOpenAPIError
	if errors.As(err, &openAPIErr) {
		if msg := describeKratosError(openAPIErr.Body()); msg != "" {
			return model.NewProviderError(msg, err)
		}
	}
	if resp != nil {
		return model.NewProviderError(fmt.Sprintf("%s (status %d)", fallback, resp.StatusCode), err)
	}
	return model.NewProviderError(fallback, err)
}

func toModelSession(s *kratos.Session, token string) *model.Session {
	sess := &model.Session{
		ID:    s.Id,
		Token: token,
	}
	if s.ExpiresAt != nil {
		sess.ExpiresAt = *s.ExpiresAt
	}
	if s.AuthenticatedAt != nil {
		sess.AuthenticatedAt = *s.AuthenticatedAt
	}
	if s.Identity != nil {
		sess.Identity = toModelIdentity(s.Identity)
	}
	return sess
}

func toModelIdentity(i *kratos.Identity) *model.Identity {
	ident := &model.Identity{ID: i.Id}
	if traits, ok := i.Traits.(map[string]interface{}); ok {
		if email, ok := traits["email"].(string); ok {
			ident.Email = email
		}
	}
	for _, addr := range i.VerifiableAddresses {
		if addr.Value == ident.Email && addr.Verified {
			ident.Verified = true
		}
	}
	return ident
}

var _ Provider = (*KratosProvider)(nil)
