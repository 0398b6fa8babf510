package user

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/docstore"
)

const ProfilesCollection = "profiles"

type profileDoc struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Email     string             `json:"email"`
	Role      Role               `json:"role"`
	Phone     string             `json:"phone"`
	CreatedAt docstore.Timestamp `json:"createdAt"`
	UpdatedAt docstore.Timestamp `json:"updatedAt"`
}

func decodeProfile(doc docstore.Document) (User, error) {
	var d profileDoc
	if err := doc.Decode(&d); err != nil {
		return User{}, err
	}
	if !d.Role.IsValid() {
		d.Role = RoleStudent
	}
	return User{
		ID:        d.ID,
		Name:      d.Name,
		Email:     d.Email,
		Role:      d.Role,
		Phone:     d.Phone,
		CreatedAt: d.CreatedAt.Time(),
		UpdatedAt: d.UpdatedAt.Time(),
	}, nil
}

func profilesQuery() docstore.Query {
	return docstore.Query{
		Collection: ProfilesCollection,
		OrderBy:    []docstore.Ordering{{Field: "createdAt", Ascending: false}},
	}
}

func checkID(id string) error {
	if err := vala.BeginValidation().Validate(vala.StringNotEmpty(id, "id")).Check(); err != nil {
		return core.NewValidationError(err)
	}
	return nil
}

// ProfileRepository keeps the user profiles, newest first. Profiles are stored under their identity UID.
// Roles read from it are the stored ones; the admin allow-list is applied by the caller.
type ProfileRepository struct {
	*docstore.LiveList[User]
	store    docstore.Store
	validate *validator.Validate
}

func NewProfileRepository(store docstore.Store, validate *validator.Validate, logger core.Logger) *ProfileRepository {
	return &ProfileRepository{
		LiveList: docstore.NewLiveList(store, profilesQuery(), decodeProfile, logger),
		store:    store,
		validate: validate,
	}
}

// Users returns the profiles as of the last delivery.
func (r *ProfileRepository) Users() []User {
	return r.Items()
}

// Load fetches the profiles once, without subscribing.
func (r *ProfileRepository) Load(ctx context.Context) ([]User, error) {
	snap, err := r.store.List(ctx, profilesQuery())
	if err != nil {
		return nil, errors.Wrap(err, "listing profiles")
	}
	users := make([]User, 0, len(snap.Docs))
	for _, doc := range snap.Docs {
		usr, err := decodeProfile(doc)
		if err != nil {
			return nil, err
		}
		users = append(users, usr)
	}
	return users, nil
}

// Get returns the profile stored under id, or ErrNotFound.
func (r *ProfileRepository) Get(ctx context.Context, id string) (User, error) {
	if err := checkID(id); err != nil {
		return User{}, err
	}
	doc, err := r.store.Get(ctx, ProfilesCollection, id)
	if errors.Cause(err) == docstore.ErrNotFound {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, errors.Wrapf(err, "getting profile %s", id)
	}
	return decodeProfile(doc)
}

// Save creates or replaces the profile of usr.ID.
func (r *ProfileRepository) Save(ctx context.Context, usr User) error {
	if err := checkID(usr.ID); err != nil {
		return err
	}
	if !usr.Role.IsValid() {
		usr.Role = RoleStudent
	}

	fields := docstore.Fields{
		"name":      usr.Name,
		"email":     core.CleanString(usr.Email, true /* lower */),
		"role":      string(usr.Role),
		"phone":     usr.Phone,
		"createdAt": docstore.ServerTimestamp,
		"updatedAt": docstore.ServerTimestamp,
	}
	if !usr.CreatedAt.IsZero() {
		fields["createdAt"] = docstore.TimestampOf(usr.CreatedAt)
	}
	return errors.Wrapf(r.store.Set(ctx, ProfilesCollection, usr.ID, fields), "saving profile %s", usr.ID)
}

// Update patches the profile stored under id.
func (r *ProfileRepository) Update(ctx context.Context, id string, uu UpdateUser) error {
	if err := checkID(id); err != nil {
		return err
	}
	if err := uu.Validate(r.validate); err != nil {
		return err
	}

	fields := docstore.Fields{"updatedAt": docstore.ServerTimestamp}
	if uu.Name != "" {
		fields["name"] = uu.Name
	}
	if uu.Email != "" {
		fields["email"] = uu.Email
	}
	if uu.Phone != nil {
		fields["phone"] = *uu.Phone
	}
	if uu.Role != "" {
		fields["role"] = string(uu.Role)
	}
	err := r.store.Patch(ctx, ProfilesCollection, id, fields)
	if errors.Cause(err) == docstore.ErrNotFound {
		return ErrNotFound
	}
	return errors.Wrapf(err, "updating profile %s", id)
}

func (r *ProfileRepository) Delete(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	return errors.Wrapf(r.store.Delete(ctx, ProfilesCollection, id), "deleting profile %s", id)
}
