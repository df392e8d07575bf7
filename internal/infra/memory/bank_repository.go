package memory

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"time"

	"assessment-engine/internal/domain"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
)

// BankLoader fetches bank content from a backing store (e.g., document DB).
type BankLoader interface {
	LoadBank(ctx context.Context, bankID string) (domain.Bank, error)
}

// BankRepository caches banks with TTL to avoid repeated DB hits.
type BankRepository struct {
	loader BankLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedBank
}

type cachedBank struct {
	bank      domain.Bank
	expiresAt time.Time
}

func NewBankRepository(loader BankLoader, ttl time.Duration) *BankRepository {
	return &BankRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedBank),
	}
}

func (r *BankRepository) GetBank(ctx context.Context, bankID string) (domain.Bank, error) {
	if bank, ok := r.cached(bankID, r.clock()); ok {
		return bank, nil
	}

	result, err, _ := r.sf.Do(bankID, func() (interface{}, error) {
		now := r.clock()
		if bank, ok := r.cached(bankID, now); ok {
			return bank, nil
		}

		bank, err := r.loader.LoadBank(ctx, bankID)
		if err != nil {
			return domain.Bank{}, err
		}

		r.mu.Lock()
		r.cache[bankID] = cachedBank{
			bank:      bank,
			expiresAt: now.Add(r.ttlWithJitterLocked()),
		}
		r.mu.Unlock()
		return bank, nil
	})
	if err != nil {
		return domain.Bank{}, err
	}
	return result.(domain.Bank), nil
}

func (r *BankRepository) cached(bankID string, now time.Time) (domain.Bank, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[bankID]
	if !ok || !entry.expiresAt.After(now) {
		return domain.Bank{}, false
	}
	return entry.bank, true
}

// ttlWithJitterLocked adds up to 10% jitter to spread expirations. Caller holds mu.
func (r *BankRepository) ttlWithJitterLocked() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticBankLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticBankLoader struct {
	banks map[string]domain.Bank
}

func NewStaticBankLoader(banks map[string]domain.Bank) *StaticBankLoader {
	return &StaticBankLoader{banks: banks}
}

func (l *StaticBankLoader) LoadBank(_ context.Context, bankID string) (domain.Bank, error) {
	if bank, ok := l.banks[bankID]; ok {
		return bank, nil
	}
	return domain.Bank{}, fmt.Errorf("%q: %w", bankID, domain.ErrBankNotFound)
}

// Banks returns every bank, ordered by id.
func (l *StaticBankLoader) Banks() []domain.Bank {
	out := make([]domain.Bank, 0, len(l.banks))
	for _, b := range l.banks {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type bankFile struct {
	Banks []domain.Bank `yaml:"banks"`
}

// LoadBankFile reads banks from a YAML (or JSON) document of the form
// {banks: [{bank_id, questions: [{text, options, correct_option_index}]}]}.
// Bank ids are normalized the way commands normalize them.
func LoadBankFile(path string) (*StaticBankLoader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file bankFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse bank file: %w", err)
	}

	banks := make(map[string]domain.Bank, len(file.Banks))
	for _, bank := range file.Banks {
		if bank.ID == "" {
			return nil, fmt.Errorf("bank file %s: bank without bank_id", path)
		}
		id, err := domain.NormalizeBankID(bank.ID)
		if err != nil {
			return nil, fmt.Errorf("bank file %s: %w", path, err)
		}
		if _, dup := banks[id]; dup {
			return nil, fmt.Errorf("bank file %s: bank_id %q collides with another bank as %q", path, bank.ID, id)
		}
		bank.ID = id
		for i, q := range bank.Questions {
			if !q.Valid() {
				return nil, fmt.Errorf("bank %q question %d: correct option %d outside %d options",
					bank.ID, i, q.CorrectOption, len(q.Options))
			}
		}
		banks[bank.ID] = bank
	}
	return NewStaticBankLoader(banks), nil
}
