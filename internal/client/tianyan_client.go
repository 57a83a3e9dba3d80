package client

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"Q-ITS-Mastery-Backend/internal/model"
	"Q-ITS-Mastery-Backend/internal/quantum"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrUnauthorized = errors.New("tianyan access token rejected")

type TianYanOptions struct {
	BaseURL      string
	LoginKey     string
	MachineName  string
	Timeout      time.Duration
	PollInterval time.Duration
	MaxWait      time.Duration
	LoginPath    string
	SubmitPath   string
	QueryPath    string
	MachinesPath string
}

// TianYanClient 天衍量子云平台客户端，实现 quantum.Backend
type TianYanClient struct {
	http   *resty.Client
	opts   TianYanOptions
	logger *zap.Logger

	mu    sync.RWMutex
	token string
	group singleflight.Group
}

var _ quantum.Backend = (*TianYanClient)(nil)

type apiEnvelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func NewTianYanClient(opts TianYanOptions, logger *zap.Logger) *TianYanClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	return &TianYanClient{
		http:   resty.New().SetBaseURL(opts.BaseURL).SetTimeout(opts.Timeout),
		opts:   opts,
		logger: logger,
	}
}

func (c *TianYanClient) post(ctx context.Context, path string, body any, auth bool) (json.RawMessage, error) {
	req := c.http.R().SetContext(ctx).SetHeader("Accept", "application/json")
	if body != nil {
		req.SetBody(body)
	}
	if auth {
		token, err := c.accessToken(ctx)
		if err != nil {
			return nil, err
		}
		req.SetAuthToken(token)
	}

	resp, err := req.Post(path)
	if err != nil {
		return nil, errors.Wrapf(err, "请求天衍平台 %s 失败", path)
	}
	return c.decode(path, resp)
}

func (c *TianYanClient) get(ctx context.Context, path string) (json.RawMessage, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.R().SetContext(ctx).SetAuthToken(token).Get(path)
	if err != nil {
		return nil, errors.Wrapf(err, "请求天衍平台 %s 失败", path)
	}
	return c.decode(path, resp)
}

func (c *TianYanClient) decode(path string, resp *resty.Response) (json.RawMessage, error) {
	if resp.StatusCode() == http.StatusUnauthorized {
		c.invalidateToken()
		return nil, errors.Wrapf(ErrUnauthorized, "%s 返回 401", path)
	}
	if !resp.IsSuccess() {
		c.logger.Error("天衍平台返回非200状态", zap.String("path", path), zap.String("status", resp.Status()), zap.ByteString("body", resp.Body()))
		return nil, errors.Errorf("天衍平台 %s 返回错误状态: %s", path, resp.Status())
	}

	var env apiEnvelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		c.logger.Error("解析天衍平台响应失败", zap.String("path", path), zap.ByteString("body", resp.Body()))
		return nil, errors.Wrapf(quantum.ErrMalformedReply, "解析 %s 响应失败: %v", path, err)
	}
	if env.Code != 0 {
		return nil, errors.Errorf("天衍平台 %s 返回业务错误 code=%d msg=%s", path, env.Code, env.Msg)
	}
	return env.Data, nil
}

func (c *TianYanClient) accessToken(ctx context.Context) (string, error) {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		return token, nil
	}

	// 多个调用方共享同一次登录，不能被首个调用方的取消打断
	v, err, _ := c.group.Do("login", func() (any, error) {
		loginCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loginTimeout())
		defer cancel()
		return c.login(loginCtx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *TianYanClient) loginTimeout() time.Duration {
	if c.opts.Timeout > 0 {
		return c.opts.Timeout
	}
	return 30 * time.Second
}

func (c *TianYanClient) login(ctx context.Context) (string, error) {
	if c.opts.LoginKey == "" {
		return "", errors.New("未配置天衍平台登录密钥 tianyan.login_key")
	}
	data, err := c.post(ctx, c.opts.LoginPath, map[string]string{"loginKey": c.opts.LoginKey}, false)
	if err != nil {
		return "", errors.WithMessage(err, "天衍平台登录失败")
	}
	var payload struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.AccessToken == "" {
		return "", errors.Wrap(quantum.ErrMalformedReply, "登录响应中没有 accessToken")
	}

	c.mu.Lock()
	c.token = payload.AccessToken
	c.mu.Unlock()
	c.logger.Info("天衍平台登录成功")
	return payload.AccessToken, nil
}

func (c *TianYanClient) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// Submit 提交 QCIS 电路，返回平台的 query id
func (c *TianYanClient) Submit(ctx context.Context, circuit *quantum.Circuit, shots int) (string, error) {
	body := map[string]any{
		"machineName": c.opts.MachineName,
		"qcis":        circuit.QCIS(),
		"shots":       shots,
		"qubits":      circuit.Capacity,
	}
	data, err := c.post(ctx, c.opts.SubmitPath, body, true)
	if err != nil {
		return "", err
	}
	var payload struct {
		QueryID string `json:"queryId"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.QueryID == "" {
		return "", errors.Wrap(quantum.ErrMalformedReply, "提交响应中没有 queryId")
	}
	return payload.QueryID, nil
}

// Fetch 查询实验结果。任务尚在排队时按 PollInterval 轮询，超过 MaxWait 后返回超时错误。
func (c *TianYanClient) Fetch(ctx context.Context, queryID string) ([]quantum.Reply, error) {
	deadline := time.Now().Add(c.opts.MaxWait)
	body := map[string][]string{"queryIds": {queryID}}

	for {
		data, err := c.post(ctx, c.opts.QueryPath, body, true)
		if err != nil {
			return nil, err
		}

		var replies []quantum.Reply
		if len(data) > 0 && string(data) != "null" {
			if err := json.Unmarshal(data, &replies); err != nil {
				return nil, errors.Wrapf(quantum.ErrMalformedReply, "解析实验结果失败: %v", err)
			}
		}
		if len(replies) > 0 {
			return replies, nil
		}
		if !time.Now().Before(deadline) {
			c.logger.Warn("等待实验结果超时", zap.String("query_id", queryID), zap.Duration("max_wait", c.opts.MaxWait))
			return nil, errors.Wrapf(context.DeadlineExceeded, "等待实验结果超时 (%s)", c.opts.MaxWait)
		}

		c.logger.Debug("实验结果尚未就绪，稍后重试查询", zap.String("query_id", queryID))
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "等待实验结果时请求被取消")
		case <-time.After(c.opts.PollInterval):
		}
	}
}

// ListMachines 获取平台当前可用的量子计算机与模拟器
func (c *TianYanClient) ListMachines(ctx context.Context) ([]model.Machine, error) {
	data, err := c.get(ctx, c.opts.MachinesPath)
	if err != nil {
		return nil, err
	}
	var machines []model.Machine
	if err := json.Unmarshal(data, &machines); err != nil {
		return nil, errors.Wrapf(quantum.ErrMalformedReply, "解析机器列表失败: %v", err)
	}
	return machines, nil
}
