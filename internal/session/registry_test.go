package session

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func novaRegistryTeste(inatividade time.Duration) (*Registry, *time.Time) {
	inicio := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	relogio := inicio
	r := NewRegistry(inatividade, nil)
	r.agora = func() time.Time { return relogio }
	return r, &relogio
}

func TestCreateValidaMatricula(t *testing.T) {
	r, _ := novaRegistryTeste(30 * time.Minute)
	ctx := context.Background()

	casos := []struct {
		matricula string
		valida    bool
	}{
		{"123456789", true},
		{"123456", true},
		{"123456789012", true},
		{"12345", false},
		{"1234567890123", false},
		{"12345678a", false},
		{"", false},
		{"  123456789", false},
	}

	for _, c := range casos {
		_, err := r.Create(ctx, c.matricula)
		if c.valida && err != nil {
			t.Errorf("Create(%q) = %v, expected success", c.matricula, err)
		}
		if !c.valida && !errors.Is(err, ErrMatriculaInvalida) {
			t.Errorf("Create(%q) = %v, expected ErrMatriculaInvalida", c.matricula, err)
		}
	}
}

func TestTouchRenovaJanela(t *testing.T) {
	r, relogio := novaRegistryTeste(30 * time.Minute)
	ctx := context.Background()

	s, err := r.Create(ctx, "123456789")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Each access inside the window slides the deadline forward.
	for i := 0; i < 3; i++ {
		*relogio = relogio.Add(20 * time.Minute)
		matricula, err := r.Touch(ctx, s.ID)
		if err != nil {
			t.Fatalf("Touch #%d failed: %v", i+1, err)
		}
		if matricula != "123456789" {
			t.Errorf("Touch returned matricula %q, want 123456789", matricula)
		}
	}
}

func TestTouchExpiraAposInatividade(t *testing.T) {
	r, relogio := novaRegistryTeste(30 * time.Minute)
	ctx := context.Background()

	s, _ := r.Create(ctx, "123456789")

	*relogio = relogio.Add(30*time.Minute + time.Second)
	if _, err := r.Touch(ctx, s.ID); !errors.Is(err, ErrExpirada) {
		t.Fatalf("Touch after inactivity = %v, want ErrExpirada", err)
	}

	// Once expired, the session stays expired.
	*relogio = relogio.Add(-25 * time.Minute)
	if _, err := r.Touch(ctx, s.ID); !errors.Is(err, ErrExpirada) {
		t.Fatalf("Touch on expired session = %v, want ErrExpirada", err)
	}
}

func TestTouchNoLimiteDaJanela(t *testing.T) {
	r, relogio := novaRegistryTeste(30 * time.Minute)
	ctx := context.Background()

	s, _ := r.Create(ctx, "123456789")

	// Exactly at the window the session is still valid.
	*relogio = relogio.Add(30 * time.Minute)
	if _, err := r.Touch(ctx, s.ID); err != nil {
		t.Fatalf("Touch at exact window boundary = %v, want success", err)
	}
}

func TestTouchSessaoDesconhecida(t *testing.T) {
	r, _ := novaRegistryTeste(30 * time.Minute)

	_, err := r.Touch(context.Background(), "nao-existe")
	if !errors.Is(err, ErrNaoEncontrada) {
		t.Fatalf("Touch unknown = %v, want ErrNaoEncontrada", err)
	}
	if errors.Is(err, ErrExpirada) {
		t.Fatal("unknown session must not be reported as expired")
	}
}

func TestInvalidateIdempotente(t *testing.T) {
	r, _ := novaRegistryTeste(30 * time.Minute)
	ctx := context.Background()

	s, _ := r.Create(ctx, "123456789")

	r.Invalidate(ctx, s.ID)
	r.Invalidate(ctx, s.ID)
	r.Invalidate(ctx, "nunca-existiu")

	if _, err := r.Touch(ctx, s.ID); !errors.Is(err, ErrExpirada) {
		t.Fatalf("Touch after Invalidate = %v, want ErrExpirada", err)
	}
}

func TestResolverNomeUltimaEscritaVence(t *testing.T) {
	r, _ := novaRegistryTeste(30 * time.Minute)
	ctx := context.Background()

	s, _ := r.Create(ctx, "123456789")
	if nome := r.Nome(s.ID); nome != "" {
		t.Fatalf("Nome before resolution = %q, want empty", nome)
	}

	r.ResolverNome(ctx, s.ID, "Maria Oliveira")
	r.ResolverNome(ctx, s.ID, "Maria O. Santos")

	if nome := r.Nome(s.ID); nome != "Maria O. Santos" {
		t.Errorf("Nome = %q, want last resolved value", nome)
	}
}

func TestSweepRemoveApenasInativas(t *testing.T) {
	r, relogio := novaRegistryTeste(30 * time.Minute)
	ctx := context.Background()

	antiga, _ := r.Create(ctx, "111111111")
	*relogio = relogio.Add(31 * time.Minute)
	recente, _ := r.Create(ctx, "222222222")

	if removidas := r.Sweep(ctx); removidas != 1 {
		t.Fatalf("Sweep removed %d sessions, want 1", removidas)
	}

	if _, err := r.Touch(ctx, antiga.ID); !errors.Is(err, ErrNaoEncontrada) {
		t.Errorf("swept session should be unknown, got %v", err)
	}
	if _, err := r.Touch(ctx, recente.ID); err != nil {
		t.Errorf("active session must survive Sweep, got %v", err)
	}
}

func TestSessoesIndependentes(t *testing.T) {
	r, _ := novaRegistryTeste(30 * time.Minute)
	ctx := context.Background()

	a, _ := r.Create(ctx, "111111111")
	b, _ := r.Create(ctx, "222222222")

	if a.ID == b.ID {
		t.Fatal("session IDs must be unique")
	}

	r.Invalidate(ctx, a.ID)

	if matricula, err := r.Touch(ctx, b.ID); err != nil || matricula != "222222222" {
		t.Fatalf("Touch(b) = (%q, %v), want active session", matricula, err)
	}
}

func TestRestauracaoLentaNaoBloqueiaOutrasSessoes(t *testing.T) {
	// A Redis that accepts connections but never answers. A restore
	// against it hangs until the client read timeout.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer ln.Close()

	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	defer func() {
		mu.Lock()
		for _, c := range conns {
			c.Close()
		}
		mu.Unlock()
	}()

	r := NewRegistry(30*time.Minute, nil)
	ctx := context.Background()

	s, err := r.Create(ctx, "123456789")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	r.ResolverNome(ctx, s.ID, "Maria Oliveira")

	// Attach the unresponsive Redis only after the session is already
	// in memory, so reads on it never need the network.
	r.rdb = redis.NewClient(&redis.Options{
		Addr:        ln.Addr().String(),
		DialTimeout: time.Second,
		ReadTimeout: time.Second,
		MaxRetries:  -1,
	})

	pronto := make(chan struct{})
	go func() {
		defer close(pronto)
		if _, err := r.Touch(ctx, "sessao-desconhecida"); !errors.Is(err, ErrNaoEncontrada) {
			t.Errorf("Touch on unknown session = %v, want ErrNaoEncontrada", err)
		}
	}()

	// Give the goroutine time to miss the map and enter the restore.
	time.Sleep(100 * time.Millisecond)

	inicio := time.Now()
	if nome := r.Nome(s.ID); nome != "Maria Oliveira" {
		t.Errorf("Nome = %q, want Maria Oliveira", nome)
	}
	if decorrido := time.Since(inicio); decorrido > 500*time.Millisecond {
		t.Errorf("Nome on an independent session took %v during a stalled restore", decorrido)
	}

	<-pronto
}
