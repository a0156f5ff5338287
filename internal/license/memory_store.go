package license

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for demo/development and unit tests.
//
// InTx holds the write lock for the whole unit of work, which serializes
// concurrent transactions the same way the row locks in PostgresStore do,
// and restores a snapshot on error so a failed transaction leaves no
// partial state.
type MemoryStore struct {
	mu sync.RWMutex

	brands      map[string]*Brand
	brandNames  map[string]string // lowercased name -> brand ID
	brandHashes map[string]string // api key hash -> brand ID

	products     map[string]*Product
	productSlugs map[string]string // brandID + "\x00" + slug -> product ID

	keys         map[string]*LicenseKey
	keyStrings   map[string]string // key string -> key ID
	customerKeys map[string]string // brandID + "\x00" + email -> key ID

	licenses       map[string]*License
	licensePerPair map[string]string // keyID + "\x00" + productID -> license ID

	activations map[string]*Activation

	inTx bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		brands:         make(map[string]*Brand),
		brandNames:     make(map[string]string),
		brandHashes:    make(map[string]string),
		products:       make(map[string]*Product),
		productSlugs:   make(map[string]string),
		keys:           make(map[string]*LicenseKey),
		keyStrings:     make(map[string]string),
		customerKeys:   make(map[string]string),
		licenses:       make(map[string]*License),
		licensePerPair: make(map[string]string),
		activations:    make(map[string]*Activation),
	}
}

var _ Store = (*MemoryStore)(nil)

func pairKey(a, b string) string { return a + "\x00" + b }

// ---------- Transactions ----------

func (m *MemoryStore) InTx(_ context.Context, fn func(Store) error) error {
	if m.inTx {
		// Already inside a unit of work; join it.
		return fn(m)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	tx := m.txView()
	if err := fn(tx); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

// txView returns a view of the store that skips locking (the caller holds
// the write lock for the duration of the transaction). The maps are shared;
// only the mutex is left behind.
func (m *MemoryStore) txView() *MemoryStore {
	return &MemoryStore{
		brands:         m.brands,
		brandNames:     m.brandNames,
		brandHashes:    m.brandHashes,
		products:       m.products,
		productSlugs:   m.productSlugs,
		keys:           m.keys,
		keyStrings:     m.keyStrings,
		customerKeys:   m.customerKeys,
		licenses:       m.licenses,
		licensePerPair: m.licensePerPair,
		activations:    m.activations,
		inTx:           true,
	}
}

type memorySnapshot struct {
	brands      map[string]*Brand
	products    map[string]*Product
	keys        map[string]*LicenseKey
	licenses    map[string]*License
	activations map[string]*Activation

	brandNames, brandHashes, productSlugs    map[string]string
	keyStrings, customerKeys, licensePerPair map[string]string
}

func (m *MemoryStore) snapshot() *memorySnapshot {
	s := &memorySnapshot{
		brands:         make(map[string]*Brand, len(m.brands)),
		products:       make(map[string]*Product, len(m.products)),
		keys:           make(map[string]*LicenseKey, len(m.keys)),
		licenses:       make(map[string]*License, len(m.licenses)),
		activations:    make(map[string]*Activation, len(m.activations)),
		brandNames:     copyIndex(m.brandNames),
		brandHashes:    copyIndex(m.brandHashes),
		productSlugs:   copyIndex(m.productSlugs),
		keyStrings:     copyIndex(m.keyStrings),
		customerKeys:   copyIndex(m.customerKeys),
		licensePerPair: copyIndex(m.licensePerPair),
	}
	for id, b := range m.brands {
		cp := *b
		s.brands[id] = &cp
	}
	for id, p := range m.products {
		cp := *p
		s.products[id] = &cp
	}
	for id, k := range m.keys {
		cp := *k
		s.keys[id] = &cp
	}
	for id, l := range m.licenses {
		cp := *l
		s.licenses[id] = &cp
	}
	for id, a := range m.activations {
		cp := *a
		s.activations[id] = &cp
	}
	return s
}

func (m *MemoryStore) restore(s *memorySnapshot) {
	m.brands = s.brands
	m.products = s.products
	m.keys = s.keys
	m.licenses = s.licenses
	m.activations = s.activations
	m.brandNames = s.brandNames
	m.brandHashes = s.brandHashes
	m.productSlugs = s.productSlugs
	m.keyStrings = s.keyStrings
	m.customerKeys = s.customerKeys
	m.licensePerPair = s.licensePerPair
}

func copyIndex(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (m *MemoryStore) lock() {
	if !m.inTx {
		m.mu.Lock()
	}
}

func (m *MemoryStore) unlock() {
	if !m.inTx {
		m.mu.Unlock()
	}
}

func (m *MemoryStore) rlock() {
	if !m.inTx {
		m.mu.RLock()
	}
}

func (m *MemoryStore) runlock() {
	if !m.inTx {
		m.mu.RUnlock()
	}
}

// ---------- Brands ----------

func (m *MemoryStore) CreateBrand(_ context.Context, b *Brand) error {
	m.lock()
	defer m.unlock()

	name := strings.ToLower(b.Name)
	if _, exists := m.brandNames[name]; exists {
		return ErrBrandExists
	}
	cp := *b
	m.brands[b.ID] = &cp
	m.brandNames[name] = b.ID
	m.brandHashes[b.APIKeyHash] = b.ID
	return nil
}

func (m *MemoryStore) GetBrand(_ context.Context, id string) (*Brand, error) {
	m.rlock()
	defer m.runlock()

	b, ok := m.brands[id]
	if !ok {
		return nil, ErrBrandNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *MemoryStore) GetBrandByKeyHash(_ context.Context, hash string) (*Brand, error) {
	m.rlock()
	defer m.runlock()

	id, ok := m.brandHashes[hash]
	if !ok {
		return nil, ErrBrandNotFound
	}
	cp := *m.brands[id]
	return &cp, nil
}

// ---------- Products ----------

func (m *MemoryStore) CreateProduct(_ context.Context, p *Product) error {
	m.lock()
	defer m.unlock()

	pk := pairKey(p.BrandID, p.Slug)
	if _, exists := m.productSlugs[pk]; exists {
		return ErrProductExists
	}
	cp := *p
	m.products[p.ID] = &cp
	m.productSlugs[pk] = p.ID
	return nil
}

func (m *MemoryStore) GetProduct(_ context.Context, id string) (*Product, error) {
	m.rlock()
	defer m.runlock()

	p, ok := m.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) GetActiveProductBySlug(_ context.Context, brandID, slug string) (*Product, error) {
	m.rlock()
	defer m.runlock()

	id, ok := m.productSlugs[pairKey(brandID, slug)]
	if !ok {
		return nil, ErrProductNotFound
	}
	p := m.products[id]
	if !p.IsActive {
		return nil, ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

// ---------- License keys ----------

func (m *MemoryStore) CreateLicenseKey(_ context.Context, k *LicenseKey) error {
	m.lock()
	defer m.unlock()

	if _, ok := m.keyStrings[k.Key]; ok {
		return ErrLicenseKeyExists
	}
	if _, ok := m.customerKeys[pairKey(k.BrandID, k.CustomerEmail)]; ok {
		return ErrLicenseKeyExists
	}

	cp := *k
	m.keys[k.ID] = &cp
	m.keyStrings[k.Key] = k.ID
	m.customerKeys[pairKey(k.BrandID, k.CustomerEmail)] = k.ID
	return nil
}

func (m *MemoryStore) GetLicenseKey(_ context.Context, id string) (*LicenseKey, error) {
	m.rlock()
	defer m.runlock()

	k, ok := m.keys[id]
	if !ok {
		return nil, ErrLicenseKeyNotFound
	}
	cp := *k
	return &cp, nil
}

func (m *MemoryStore) GetLicenseKeyByKey(_ context.Context, key string) (*LicenseKey, error) {
	m.rlock()
	defer m.runlock()

	id, ok := m.keyStrings[key]
	if !ok {
		return nil, ErrLicenseKeyNotFound
	}
	cp := *m.keys[id]
	return &cp, nil
}

func (m *MemoryStore) GetLicenseKeyForCustomer(_ context.Context, brandID, email string) (*LicenseKey, error) {
	m.rlock()
	defer m.runlock()

	id, ok := m.customerKeys[pairKey(brandID, email)]
	if !ok {
		return nil, ErrLicenseKeyNotFound
	}
	cp := *m.keys[id]
	return &cp, nil
}

func (m *MemoryStore) LicenseKeyExists(_ context.Context, key string) (bool, error) {
	m.rlock()
	defer m.runlock()

	_, ok := m.keyStrings[key]
	return ok, nil
}

func (m *MemoryStore) ListLicenseKeysByEmail(_ context.Context, email string) ([]*LicenseKey, error) {
	m.rlock()
	defer m.runlock()

	var out []*LicenseKey
	for _, k := range m.keys {
		if k.CustomerEmail == email {
			cp := *k
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ---------- Licenses ----------

func (m *MemoryStore) CreateLicense(_ context.Context, l *License) error {
	m.lock()
	defer m.unlock()

	pk := pairKey(l.LicenseKeyID, l.ProductID)
	if _, exists := m.licensePerPair[pk]; exists {
		return ErrLicenseExists
	}
	cp := *l
	m.licenses[l.ID] = &cp
	m.licensePerPair[pk] = l.ID
	return nil
}

func (m *MemoryStore) GetLicense(_ context.Context, id string) (*License, error) {
	m.rlock()
	defer m.runlock()

	l, ok := m.licenses[id]
	if !ok {
		return nil, ErrLicenseNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *MemoryStore) GetLicenseByKeyAndProduct(_ context.Context, keyID, productID string) (*License, error) {
	m.rlock()
	defer m.runlock()

	id, ok := m.licensePerPair[pairKey(keyID, productID)]
	if !ok {
		return nil, ErrLicenseNotFound
	}
	cp := *m.licenses[id]
	return &cp, nil
}

// LockLicense is equivalent to GetLicense: inside InTx the store-wide write
// lock already serializes concurrent transactions.
func (m *MemoryStore) LockLicense(ctx context.Context, id string) (*License, error) {
	return m.GetLicense(ctx, id)
}

func (m *MemoryStore) UpdateLicense(_ context.Context, l *License) error {
	m.lock()
	defer m.unlock()

	if _, ok := m.licenses[l.ID]; !ok {
		return ErrLicenseNotFound
	}
	l.UpdatedAt = time.Now().UTC()
	cp := *l
	m.licenses[l.ID] = &cp
	return nil
}

func (m *MemoryStore) ListLicensesByKey(_ context.Context, keyID string) ([]*License, error) {
	m.rlock()
	defer m.runlock()

	var out []*License
	for _, l := range m.licenses {
		if l.LicenseKeyID == keyID {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ---------- Activations ----------

func (m *MemoryStore) CreateActivation(_ context.Context, a *Activation) error {
	m.lock()
	defer m.unlock()

	cp := *a
	m.activations[a.ID] = &cp
	return nil
}

func (m *MemoryStore) GetActiveActivation(_ context.Context, licenseID, instanceID string) (*Activation, error) {
	m.rlock()
	defer m.runlock()

	for _, a := range m.activations {
		if a.LicenseID == licenseID && a.InstanceID == instanceID && a.IsActive {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrActivationNotFound
}

func (m *MemoryStore) CountActiveActivations(_ context.Context, licenseID string) (int, error) {
	m.rlock()
	defer m.runlock()

	count := 0
	for _, a := range m.activations {
		if a.LicenseID == licenseID && a.IsActive {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) UpdateActivation(_ context.Context, a *Activation) error {
	m.lock()
	defer m.unlock()

	if _, ok := m.activations[a.ID]; !ok {
		return ErrActivationNotFound
	}
	cp := *a
	m.activations[a.ID] = &cp
	return nil
}
