package valon

import (
	"errors"
	"fmt"
	"sync"
)

// OpenerFactory создает Opener для пути к порту (или URL моста).
// Недопустимую цель фабрика отклоняет ошибкой, не открывая транспорт.
type OpenerFactory func(path string) (Opener, error)

// SynthPool управляет набором синтезаторов, по одному на порт, для многопоточного доступа.
type SynthPool struct {
	devices map[string]*Synth
	mu      sync.RWMutex
	factory OpenerFactory
	opts    []Option
}

func NewSynthPool(factory OpenerFactory, opts ...Option) *SynthPool {
	return &SynthPool{devices: make(map[string]*Synth), factory: factory, opts: opts}
}

// Get возвращает синтезатор для порта, создавая его при первом обращении.
// Новый экземпляр опознается чтением опорной частоты; неответивший в пул не попадает.
func (p *SynthPool) Get(path string) (*Synth, error) {
	if path == "" {
		return nil, errors.New("valon: не задан порт")
	}

	p.mu.RLock()
	if s, exists := p.devices[path]; exists {
		p.mu.RUnlock()
		return s, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if s, exists := p.devices[path]; exists {
		return s, nil
	}

	open, err := p.factory(path)
	if err != nil {
		return nil, err
	}
	s := New(open, p.opts...)
	if _, err := s.GetReference(); err != nil {
		return nil, fmt.Errorf("ошибка опознания синтезатора на %s: %w", path, err)
	}
	p.devices[path] = s
	return s, nil
}

// Ports возвращает пути уже открытых синтезаторов.
func (p *SynthPool) Ports() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ports := make([]string, 0, len(p.devices))
	for path := range p.devices {
		ports = append(ports, path)
	}
	return ports
}

func (p *SynthPool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for path, s := range p.devices {
		s.Close()
		delete(p.devices, path)
	}
}
