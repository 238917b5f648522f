package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/adswadi/agency-site-backend/errs"
	"github.com/adswadi/agency-site-backend/models"
)

// MemoryBlogPostRepo keeps posts in-process. Used by tests and DB_TYPE=memory.
type MemoryBlogPostRepo struct {
	mu     sync.RWMutex
	posts  map[uint]models.BlogPost
	nextID uint
	now    func() time.Time
	owners *MemoryUserRepo
}

func NewMemoryBlogPostRepo() *MemoryBlogPostRepo {
	return &MemoryBlogPostRepo{
		posts:  make(map[uint]models.BlogPost),
		nextID: 1,
		now:    time.Now,
	}
}

// WithOwners resolves post owners from users on reads.
func (m *MemoryBlogPostRepo) WithOwners(users *MemoryUserRepo) *MemoryBlogPostRepo {
	m.owners = users
	return m
}

func clonePost(p models.BlogPost) *models.BlogPost {
	tags := make([]string, len(p.Tags))
	copy(tags, p.Tags)
	p.Tags = tags
	p.User = nil
	return &p
}

// readPost is clonePost plus the owner, as the gorm repository preloads it.
func (m *MemoryBlogPostRepo) readPost(p models.BlogPost) *models.BlogPost {
	out := clonePost(p)
	if m.owners != nil && out.UserID != nil {
		out.User = m.owners.owner(*out.UserID)
	}
	return out
}

func (m *MemoryBlogPostRepo) slugOwner(slug string) (uint, bool) {
	for id, p := range m.posts {
		if p.Slug == slug {
			return id, true
		}
	}
	return 0, false
}

func (m *MemoryBlogPostRepo) Create(_ context.Context, post *models.BlogPost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.slugOwner(post.Slug); taken {
		return errs.NewDuplicateSlugError(post.Slug)
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}
	now := m.now()
	post.ID = m.nextID
	m.nextID++
	post.CreatedAt = now
	post.UpdatedAt = now
	m.posts[post.ID] = *clonePost(*post)
	return nil
}

func (m *MemoryBlogPostRepo) Update(_ context.Context, post *models.BlogPost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.posts[post.ID]
	if !ok {
		return errs.NewNotFound("blog post")
	}
	if owner, taken := m.slugOwner(post.Slug); taken && owner != post.ID {
		return errs.NewDuplicateSlugError(post.Slug)
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}
	post.CreatedAt = existing.CreatedAt
	post.ViewCount = existing.ViewCount
	post.UpdatedAt = m.now()
	m.posts[post.ID] = *clonePost(*post)
	return nil
}

func (m *MemoryBlogPostRepo) FindByID(_ context.Context, id uint) (*models.BlogPost, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, errs.NewNotFound("blog post")
	}
	return m.readPost(p), nil
}

func (m *MemoryBlogPostRepo) FindBySlug(_ context.Context, slug string) (*models.BlogPost, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.slugOwner(slug)
	if !ok {
		return nil, errs.NewNotFound("blog post")
	}
	return clonePost(m.posts[id]), nil
}

func (m *MemoryBlogPostRepo) SlugTakenByOther(_ context.Context, slug string, excludeID uint) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.slugOwner(slug)
	return ok && id != excludeID, nil
}

func (m *MemoryBlogPostRepo) FindPublishedPaged(_ context.Context, limit, offset *int) ([]*models.BlogPost, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	matches := []*models.BlogPost{}
	for _, p := range m.posts {
		if p.Status == models.StatusPublished {
			matches = append(matches, m.readPost(p))
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i].PublishedAt, matches[j].PublishedAt
		switch {
		case a == nil && b == nil:
			return matches[i].ID > matches[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case a.Equal(*b):
			return matches[i].ID > matches[j].ID
		}
		return a.After(*b)
	})
	total := int64(len(matches))
	if limit == nil {
		return matches, total, nil
	}
	start := 0
	if offset != nil && *offset > 0 {
		start = *offset
	}
	if start > len(matches) {
		start = len(matches)
	}
	end := start + *limit
	if *limit < 0 || end > len(matches) {
		end = len(matches)
	}
	return matches[start:end], total, nil
}

func (m *MemoryBlogPostRepo) FindBySlugPublished(_ context.Context, slug string) (*models.BlogPost, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.slugOwner(slug)
	if !ok || m.posts[id].Status != models.StatusPublished {
		return nil, errs.NewNotFound("blog post")
	}
	return m.readPost(m.posts[id]), nil
}

func (m *MemoryBlogPostRepo) IncrementViewCount(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return errs.NewNotFound("blog post")
	}
	p.ViewCount++
	m.posts[id] = p
	return nil
}

func (m *MemoryBlogPostRepo) FindAllForAdmin(_ context.Context) ([]*models.BlogPost, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]*models.BlogPost, 0, len(m.posts))
	for _, p := range m.posts {
		all = append(all, m.readPost(p))
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return all, nil
}

func (m *MemoryBlogPostRepo) Delete(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[id]; !ok {
		return errs.NewNotFound("blog post")
	}
	delete(m.posts, id)
	return nil
}

func (m *MemoryBlogPostRepo) Count(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.posts)), nil
}

func (m *MemoryBlogPostRepo) CountByStatus(_ context.Context) (map[models.PostStatus]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[models.PostStatus]int64)
	for _, p := range m.posts {
		counts[p.Status]++
	}
	return counts, nil
}

// MemoryUserRepo keeps users in-process.
type MemoryUserRepo struct {
	mu     sync.RWMutex
	users  map[uint]models.User
	nextID uint
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		users:  make(map[uint]models.User),
		nextID: 1,
	}
}

func (m *MemoryUserRepo) conflicts(u *models.User) bool {
	for id, existing := range m.users {
		if id == u.ID {
			continue
		}
		if existing.Username == u.Username {
			return true
		}
		if u.Email != nil && existing.Email != nil && *u.Email == *existing.Email {
			return true
		}
	}
	return false
}

func (m *MemoryUserRepo) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conflicts(user) {
		return errs.NewAlreadyExists("user")
	}
	now := time.Now()
	user.ID = m.nextID
	m.nextID++
	user.CreatedAt = now
	user.UpdatedAt = now
	m.users[user.ID] = *user
	return nil
}

func (m *MemoryUserRepo) Update(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.users[user.ID]
	if !ok {
		return errs.NewNotFound("user")
	}
	if m.conflicts(user) {
		return errs.NewAlreadyExists("user")
	}
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = time.Now()
	m.users[user.ID] = *user
	return nil
}

func (m *MemoryUserRepo) owner(id uint) *models.PostOwner {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil
	}
	return &models.PostOwner{ID: u.ID, Username: u.Username, Email: u.Email}
}

func (m *MemoryUserRepo) FindByID(_ context.Context, id uint) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, errs.NewNotFound("user")
	}
	return &u, nil
}

func (m *MemoryUserRepo) FindByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, errs.NewNotFound("user")
}

func (m *MemoryUserRepo) FindActiveByUsername(ctx context.Context, username string) (*models.User, error) {
	u, err := m.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, errs.NewNotFound("user")
	}
	return u, nil
}

func (m *MemoryUserRepo) ExistsByUsernameOrEmail(_ context.Context, username string, email *string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conflicts(&models.User{Username: username, Email: email}), nil
}

func (m *MemoryUserRepo) Count(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.users)), nil
}
