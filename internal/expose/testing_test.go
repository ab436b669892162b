package expose

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// echoService 实现三动词和若干导出方法
type echoService struct{}

func (echoService) Ask(_ context.Context, query string, _ map[string]any) (any, error) {
	return "Echo:" + query, nil
}

func (echoService) Tell(_ context.Context, format string, data any) (any, error) {
	return fmt.Sprintf("%s:%v", format, data), nil
}

func (echoService) Do(_ context.Context, action string, _ map[string]any) (any, error) {
	switch action {
	case "panic":
		panic("boom")
	case "fail":
		return nil, errors.New("failed")
	}
	return "did " + action, nil
}

func (echoService) Get(key string) string { return "value of " + key }

func (echoService) GetUser(id int) (map[string]any, error) {
	if id < 0 {
		return nil, errors.New("bad id")
	}
	return map[string]any{"id": id}, nil
}

func (echoService) Search(_ context.Context, query string, kwargs map[string]any) []string {
	return []string{query, fmt.Sprint(kwargs["limit"])}
}

func (echoService) Sum(nums ...int) int {
	total := 0
	for _, n := range nums {
		total += n
	}
	return total
}

func (echoService) Channel() chan int { return make(chan int) }

func (echoService) Touch() error { return nil }

// askOnly 只实现 ask
type askOnly struct{}

func (askOnly) Ask(_ context.Context, query string, _ map[string]any) (any, error) {
	return query, nil
}

// fakePublisher 记录宣告
type fakePublisher struct {
	mu          sync.Mutex
	err         error
	announced   map[string]int
	unannounced []string
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{announced: make(map[string]int)}
}

func (p *fakePublisher) Announce(name string, _, _ []string, port int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.announced[name] = port
	return nil
}

func (p *fakePublisher) Unannounce(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.announced, name)
	p.unannounced = append(p.unannounced, name)
	return nil
}

func (p *fakePublisher) port(name string) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	port, ok := p.announced[name]
	return port, ok
}
