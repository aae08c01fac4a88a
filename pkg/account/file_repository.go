package account

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/google/uuid"
)

const accountsFile = "accounts.json"

// FileRepository keeps accounts in memory and writes them to a JSON file in
// dataDir after every change.
type FileRepository struct {
	*InMemoryRepository
	dataDir string
	fileMu  sync.Mutex
}

// accountData represents the structure of data stored in the JSON file
type accountData struct {
	Accounts []*Account     `json:"accounts"`
	Emails   []*EmailRecord `json:"emails"`
}

func NewFileRepository(dataDir string) (*FileRepository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileRepository{
		InMemoryRepository: NewInMemoryRepository(),
		dataDir:            dataDir,
	}
	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}
	return repo, nil
}

func (r *FileRepository) CreateAccount(ctx context.Context, acct *Account) error {
	return r.persist(func() error { return r.InMemoryRepository.CreateAccount(ctx, acct) })
}

func (r *FileRepository) UpdateAccount(ctx context.Context, acct *Account) error {
	return r.persist(func() error { return r.InMemoryRepository.UpdateAccount(ctx, acct) })
}

func (r *FileRepository) SaveEmail(ctx context.Context, rec *EmailRecord) error {
	return r.persist(func() error { return r.InMemoryRepository.SaveEmail(ctx, rec) })
}

func (r *FileRepository) DeleteEmail(ctx context.Context, id uuid.UUID) error {
	return r.persist(func() error { return r.InMemoryRepository.DeleteEmail(ctx, id) })
}

// persist applies change and writes the result. When the write fails the
// in-memory state is reloaded from the last good file.
func (r *FileRepository) persist(change func() error) error {
	r.fileMu.Lock()
	defer r.fileMu.Unlock()

	if err := change(); err != nil {
		return err
	}
	if err := r.save(); err != nil {
		if loadErr := r.load(); loadErr != nil {
			return fmt.Errorf("failed to save: %w (reload failed: %v)", err, loadErr)
		}
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

func (r *FileRepository) load() error {
	filePath := filepath.Join(r.dataDir, accountsFile)

	accounts := make(map[uuid.UUID]*Account)
	emails := make(map[uuid.UUID]*EmailRecord)

	data, err := os.ReadFile(filePath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) > 0 {
		var stored accountData
		if err := json.Unmarshal(data, &stored); err != nil {
			return fmt.Errorf("failed to unmarshal data: %w", err)
		}
		for _, acct := range stored.Accounts {
			accounts[acct.ID] = acct
		}
		for _, rec := range stored.Emails {
			emails[rec.ID] = rec
		}
	}

	r.mutex.Lock()
	r.accounts = accounts
	r.emails = emails
	r.mutex.Unlock()
	return nil
}

// save writes account data to file atomically
func (r *FileRepository) save() error {
	r.mutex.RLock()
	stored := accountData{
		Accounts: make([]*Account, 0, len(r.accounts)),
		Emails:   make([]*EmailRecord, 0, len(r.emails)),
	}
	for _, acct := range r.accounts {
		stored.Accounts = append(stored.Accounts, acct)
	}
	for _, rec := range r.emails {
		stored.Emails = append(stored.Emails, rec)
	}
	sortByCreated(&stored)
	jsonData, err := json.MarshalIndent(stored, "", "  ")
	r.mutex.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	tempFile := filepath.Join(r.dataDir, accountsFile+".tmp")
	if err := os.WriteFile(tempFile, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, filepath.Join(r.dataDir, accountsFile)); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

// sortByCreated keeps the JSON output stable between writes.
func sortByCreated(stored *accountData) {
	slices.SortFunc(stored.Accounts, func(a, b *Account) int { return a.CreatedAt.Compare(b.CreatedAt) })
	slices.SortFunc(stored.Emails, func(a, b *EmailRecord) int { return a.CreatedAt.Compare(b.CreatedAt) })
}
