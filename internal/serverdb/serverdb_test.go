package serverdb

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *ServerDB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustUser(t *testing.T, db *ServerDB, email, role string) *User {
	t.Helper()
	u, err := db.CreateUser(email, "Harvest2024", role, map[string]string{"full_name": "Test " + role, "phone": "+923001234567"})
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

// mustConsultant registers and finalizes a consultant, returning its record.
func mustConsultant(t *testing.T, db *ServerDB, email string) *Consultant {
	t.Helper()
	u := mustUser(t, db, email, RoleConsultant)
	p, _ := db.GetProfileByUserID(u.ID)
	if _, err := db.Finalize(FinalizeInput{UserID: u.ID, ProfileID: p.ID, Details: map[string]string{"qualification": "MSc"}}); err != nil {
		t.Fatalf("finalize consultant: %v", err)
	}
	c, err := db.GetConsultantByUserID(u.ID)
	if err != nil || c == nil {
		t.Fatalf("consultant record missing: %v", err)
	}
	return c
}

func TestOpenSetsSchemaVersion(t *testing.T) {
	db := newTestDB(t)
	if v := db.SchemaVersion(); v != ServerSchemaVersion {
		t.Fatalf("schema version = %d, want %d", v, ServerSchemaVersion)
	}
	if db.Driver() != DriverModernc {
		t.Errorf("driver = %s", db.Driver())
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := OpenWithDriver("postgres", ":memory:"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestOpenFileReopen(t *testing.T) {
	path := t.TempDir() + "/data/server.db"
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	mustUser(t, db, "persist@test.pk", RoleFarmer)
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if ok, _ := db.EmailExists("persist@test.pk"); !ok {
		t.Fatal("user lost after reopen")
	}
}

// --- User tests ---

func TestCreateUser(t *testing.T) {
	db := newTestDB(t)
	u, err := db.CreateUser("Alice@Example.COM", "secret123", RoleFarmer, nil)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email not lowercased: %s", u.Email)
	}
	if !strings.HasPrefix(u.ID, "u_") {
		t.Errorf("unexpected id prefix: %s", u.ID)
	}
}

func TestCreateUserDuplicate(t *testing.T) {
	db := newTestDB(t)
	mustUser(t, db, "dup@test.com", RoleFarmer)
	_, err := db.CreateUser("DUP@test.com", "x", RoleConsultant, nil)
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}
}

func TestCreateUserValidation(t *testing.T) {
	db := newTestDB(t)
	tests := []struct {
		name, email, password, role string
	}{
		{"empty email", "", "pw", RoleFarmer},
		{"empty password", "a@b.pk", "", RoleFarmer},
		{"bad role", "a@b.pk", "pw", "gardener"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := db.CreateUser(tt.email, tt.password, tt.role, nil); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestAuthenticate(t *testing.T) {
	db := newTestDB(t)
	u := mustUser(t, db, "login@test.pk", RoleFarmer)

	got, err := db.Authenticate(" LOGIN@test.pk", "Harvest2024")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != u.ID || got.Metadata["full_name"] != "Test farmer" {
		t.Errorf("user = %+v", got)
	}

	if _, err := db.Authenticate("login@test.pk", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v", err)
	}
	if _, err := db.Authenticate("nobody@test.pk", "Harvest2024"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email err = %v", err)
	}
}

func TestGetUserByIDNotFound(t *testing.T) {
	db := newTestDB(t)
	found, err := db.GetUserByID("u_nonexistent")
	if err != nil {
		t.Fatal(err)
	}
	if found != nil {
		t.Fatal("expected nil for missing user")
	}
}

func TestListUsersByRole(t *testing.T) {
	db := newTestDB(t)
	mustUser(t, db, "a@test.com", RoleFarmer)
	mustUser(t, db, "b@test.com", RoleConsultant)
	mustUser(t, db, "c@test.com", RoleFarmer)

	all, err := db.ListUsers("")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 users, got %d", len(all))
	}
	farmers, _ := db.ListUsers(RoleFarmer)
	if len(farmers) != 2 {
		t.Fatalf("expected 2 farmers, got %d", len(farmers))
	}
}

// --- Profile trigger tests ---

func TestProfileCreatedByTrigger(t *testing.T) {
	db := newTestDB(t)
	u := mustUser(t, db, "trigger@test.pk", RoleConsultant)

	p, err := db.GetProfileByUserID(u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if p == nil {
		t.Fatal("profile not created by trigger")
	}
	if !strings.HasPrefix(p.ID, "pr_") {
		t.Errorf("profile id = %s", p.ID)
	}
	if p.FullName != "Test consultant" || p.Phone != "+923001234567" || p.Role != RoleConsultant {
		t.Errorf("profile = %+v", p)
	}
	if p.FinalizedAt != nil {
		t.Error("new profile should not be finalized")
	}
}

func TestNoProfileForAdmin(t *testing.T) {
	db := newTestDB(t)
	u := mustUser(t, db, "root@test.pk", RoleAdmin)
	p, err := db.GetProfileByUserID(u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if p != nil {
		t.Fatal("admin should not get a profile")
	}
}

// --- API Key tests ---

func TestGenerateAndVerifyAPIKey(t *testing.T) {
	db := newTestDB(t)
	u := mustUser(t, db, "key@test.com", RoleFarmer)

	plaintext, ak, err := db.GenerateAPIKey(u.ID, "cli", nil)
	if err != nil {
		t.Fatalf("generate api key: %v", err)
	}
	if !strings.HasPrefix(plaintext, APIKeyPrefix) {
		t.Errorf("unexpected key prefix: %s", plaintext[:10])
	}

	verifiedKey, verifiedUser, err := db.VerifyAPIKey(plaintext)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if verifiedKey.ID != ak.ID || verifiedUser.ID != u.ID {
		t.Error("key or user mismatch")
	}
	if verifiedKey.LastUsedAt == nil {
		t.Error("last_used_at not set")
	}
}

func TestVerifyAPIKeyInvalidOrExpired(t *testing.T) {
	db := newTestDB(t)
	u := mustUser(t, db, "expired@test.com", RoleFarmer)
	past := time.Now().Add(-24 * time.Hour)
	expired, _, err := db.GenerateAPIKey(u.ID, "old", &past)
	if err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{APIKeyPrefix + "invalid", expired} {
		ak, user, err := db.VerifyAPIKey(key)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ak != nil || user != nil {
			t.Fatalf("expected nil result for %q", key)
		}
	}
}

func TestRevokeAPIKey(t *testing.T) {
	db := newTestDB(t)
	owner := mustUser(t, db, "owner@test.com", RoleFarmer)
	other := mustUser(t, db, "other@test.com", RoleFarmer)
	_, ak, _ := db.GenerateAPIKey(owner.ID, "mine", nil)

	if err := db.RevokeAPIKey(ak.ID, other.ID); err == nil {
		t.Fatal("expected error revoking another user's key")
	}
	if err := db.RevokeAPIKey(ak.ID, owner.ID); err != nil {
		t.Fatal(err)
	}
	keys, _ := db.ListAPIKeys(owner.ID)
	if len(keys) != 0 {
		t.Fatalf("expected 0 keys after revoke, got %d", len(keys))
	}
}

// --- Finalize tests ---

func TestFinalizeConsultant(t *testing.T) {
	db := newTestDB(t)
	u := mustUser(t, db, "sara@test.pk", RoleConsultant)
	p, _ := db.GetProfileByUserID(u.ID)

	got, err := db.Finalize(FinalizeInput{
		UserID:    u.ID,
		ProfileID: p.ID,
		Location:  Location{Country: "PK", Province: "Punjab", City: "Lahore"},
		Details:   map[string]string{"qualification": "MSc Agronomy", "experience_years": "6.5"},
		Documents: map[string]string{"avatar": "http://x/a.png", "educational_doc": "http://x/d.pdf"},
	})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if got.FinalizedAt == nil || got.AvatarURL != "http://x/a.png" {
		t.Errorf("profile = %+v", got)
	}

	c, err := db.GetConsultantByUserID(u.ID)
	if err != nil || c == nil {
		t.Fatalf("consultant: %v", err)
	}
	if c.ExperienceYears != 6.5 || c.City != "Lahore" || c.Qualification != "MSc Agronomy" {
		t.Errorf("consultant = %+v", c)
	}
	if _, ok := c.Documents["avatar"]; ok {
		t.Error("avatar should not be stored with documents")
	}
	if c.Documents["educational_doc"] != "http://x/d.pdf" {
		t.Errorf("documents = %v", c.Documents)
	}

	_, err = db.Finalize(FinalizeInput{UserID: u.ID, ProfileID: p.ID})
	if !errors.Is(err, ErrAlreadyFinalized) {
		t.Errorf("second finalize err = %v", err)
	}
}

func TestFinalizeWrongOwner(t *testing.T) {
	db := newTestDB(t)
	a := mustUser(t, db, "a@test.pk", RoleFarmer)
	b := mustUser(t, db, "b@test.pk", RoleFarmer)
	p, _ := db.GetProfileByUserID(a.ID)

	_, err := db.Finalize(FinalizeInput{UserID: b.ID, ProfileID: p.ID})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestFinalizeRejectsInvalidNumbers(t *testing.T) {
	db := newTestDB(t)
	tests := []struct {
		email, role, key, value string
	}{
		{"nan@test.pk", RoleConsultant, "experience_years", "NaN"},
		{"inf@test.pk", RoleConsultant, "experience_years", "+Inf"},
		{"neg@test.pk", RoleFarmer, "farm_size", "-1"},
		{"word@test.pk", RoleFarmer, "farm_size", "lots"},
	}
	for _, tt := range tests {
		u := mustUser(t, db, tt.email, tt.role)
		p, _ := db.GetProfileByUserID(u.ID)
		_, err := db.Finalize(FinalizeInput{UserID: u.ID, ProfileID: p.ID, Details: map[string]string{tt.key: tt.value}})
		if !errors.Is(err, ErrInvalidDetail) {
			t.Errorf("%s=%q: err = %v, want ErrInvalidDetail", tt.key, tt.value, err)
			continue
		}
		if !strings.Contains(err.Error(), tt.key) {
			t.Errorf("error %q does not name %s", err, tt.key)
		}
		got, _ := db.GetProfile(p.ID)
		if got == nil || got.FinalizedAt != nil {
			t.Errorf("%s: profile finalized despite invalid detail: %+v", tt.email, got)
		}
	}
}

func TestFinalizeFarmerClaimsConsultantRecord(t *testing.T) {
	db := newTestDB(t)
	c := mustConsultant(t, db, "c@test.pk")
	created, err := db.CreateFarmer(c.ID, Farmer{FullName: "Ali Khan", Email: "ali@test.pk"})
	if err != nil {
		t.Fatal(err)
	}

	u := mustUser(t, db, "ali@test.pk", RoleFarmer)
	p, _ := db.GetProfileByUserID(u.ID)
	if _, err := db.Finalize(FinalizeInput{UserID: u.ID, ProfileID: p.ID, Details: map[string]string{"farm_size": "12"}}); err != nil {
		t.Fatal(err)
	}

	f, _ := db.GetFarmerByUserID(u.ID)
	if f == nil || f.ID != created.ID {
		t.Fatalf("farmer = %+v, want claimed %s", f, created.ID)
	}
	if f.ConsultantID != c.ID {
		t.Errorf("link lost: %+v", f)
	}
}

// --- Farmer tests ---

func TestFarmerCRUD(t *testing.T) {
	db := newTestDB(t)
	c := mustConsultant(t, db, "crud@test.pk")

	f, err := db.CreateFarmer(c.ID, Farmer{FullName: "Bilal", Email: "Bilal@Test.pk", City: "Multan", FarmSizeAcres: 4})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if f.Email != "bilal@test.pk" || f.ConsultantID != c.ID {
		t.Errorf("created = %+v", f)
	}

	name := "Bilal Ahmed"
	size := 7.5
	upd, err := db.UpdateFarmer(c.ID, f.ID, FarmerUpdate{FullName: &name, FarmSizeAcres: &size})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if upd.FullName != "Bilal Ahmed" || upd.FarmSizeAcres != 7.5 || upd.City != "Multan" {
		t.Errorf("updated = %+v", upd)
	}

	if err := db.DeleteFarmer(c.ID, f.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := db.GetFarmer(f.ID); got != nil {
		t.Error("farmer still present after delete")
	}
}

func TestFarmerScopedToConsultant(t *testing.T) {
	db := newTestDB(t)
	c1 := mustConsultant(t, db, "c1@test.pk")
	c2 := mustConsultant(t, db, "c2@test.pk")
	f, _ := db.CreateFarmer(c1.ID, Farmer{FullName: "Zara", Email: "zara@test.pk"})

	if got, _ := db.GetLinkedFarmer(c2.ID, f.ID); got != nil {
		t.Error("other consultant can see farmer")
	}
	name := "x"
	if _, err := db.UpdateFarmer(c2.ID, f.ID, FarmerUpdate{FullName: &name}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update err = %v", err)
	}
	if err := db.DeleteFarmer(c2.ID, f.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete err = %v", err)
	}
	if _, err := db.CreateFarmer(c2.ID, Farmer{FullName: "Zara", Email: "zara@test.pk"}); !errors.Is(err, ErrFarmerLinked) {
		t.Errorf("relink err = %v", err)
	}
}

func TestLinkFarmerLostRace(t *testing.T) {
	db := newTestDB(t)
	c1 := mustConsultant(t, db, "race1@test.pk")
	c2 := mustConsultant(t, db, "race2@test.pk")
	f, err := db.CreateFarmer(c1.ID, Farmer{FullName: "Raza", Email: "raza@test.pk"})
	if err != nil {
		t.Fatal(err)
	}

	// c2 read the farmer as unlinked before c1's link committed.
	tx, err := db.conn.Begin()
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()
	if err := linkFarmer(tx, f.ID, c2.ID); !errors.Is(err, ErrFarmerLinked) {
		t.Fatalf("err = %v, want ErrFarmerLinked", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	db := newTestDB(t)
	u := mustUser(t, db, "dup@test.pk", RoleFarmer)

	_, err := db.conn.Exec(`INSERT INTO users (id, email, password_hash, role, metadata, created_at, updated_at)
		VALUES (?, ?, 'x', ?, '{}', ?, ?)`, "u_other", u.Email, RoleFarmer, time.Now(), time.Now())
	if !isUniqueViolation(err) {
		t.Errorf("duplicate email not reported as a unique violation: %v", err)
	}

	_, err = db.conn.Exec(`INSERT INTO no_such_table VALUES (1)`)
	if err == nil || isUniqueViolation(err) {
		t.Errorf("missing table reported as a unique violation: %v", err)
	}
	if isUniqueViolation(nil) {
		t.Error("nil reported as a unique violation")
	}
}

func TestListFarmersSearchAndPaging(t *testing.T) {
	db := newTestDB(t)
	c := mustConsultant(t, db, "list@test.pk")
	for _, n := range []string{"Asad", "Babar", "Chand", "Danish"} {
		city := "Lahore"
		if n == "Chand" {
			city = "Quetta"
		}
		if _, err := db.CreateFarmer(c.ID, Farmer{FullName: n, Email: strings.ToLower(n) + "@test.pk", City: city}); err != nil {
			t.Fatal(err)
		}
	}

	page, total, err := db.ListFarmers(c.ID, "", 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	if total != 4 || len(page) != 2 || page[0].FullName != "Babar" {
		t.Errorf("page = %d items, total %d, first %v", len(page), total, page)
	}

	found, total, _ := db.ListFarmers(c.ID, "quetta", 10, 0)
	if total != 1 || found[0].FullName != "Chand" {
		t.Errorf("search = %v (total %d)", found, total)
	}
}

func TestDeleteRegisteredFarmerOnlyUnlinks(t *testing.T) {
	db := newTestDB(t)
	c := mustConsultant(t, db, "unlink@test.pk")
	f, _ := db.CreateFarmer(c.ID, Farmer{FullName: "Reg", Email: "reg@test.pk"})
	u := mustUser(t, db, "reg@test.pk", RoleFarmer)
	p, _ := db.GetProfileByUserID(u.ID)
	db.Finalize(FinalizeInput{UserID: u.ID, ProfileID: p.ID})

	if err := db.DeleteFarmer(c.ID, f.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := db.GetFarmer(f.ID)
	if got == nil {
		t.Fatal("registered farmer row deleted")
	}
	if got.ConsultantID != "" {
		t.Errorf("still linked to %s", got.ConsultantID)
	}
}

// --- Notification tests ---

func TestNotifications(t *testing.T) {
	db := newTestDB(t)
	u := mustUser(t, db, "inbox@test.pk", RoleFarmer)
	other := mustUser(t, db, "other@test.pk", RoleFarmer)

	n1, _ := db.CreateNotification(u.ID, NotifyWelcome, "Welcome", "")
	db.CreateNotification(u.ID, "", "Second", "body")

	list, unread, err := db.ListNotifications(u.ID, false, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || unread != 2 {
		t.Fatalf("list = %d, unread = %d", len(list), unread)
	}

	if err := db.MarkNotificationRead(other.ID, n1.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-user mark read err = %v", err)
	}
	if err := db.MarkNotificationRead(u.ID, n1.ID); err != nil {
		t.Fatal(err)
	}
	unreadList, unread, _ := db.ListNotifications(u.ID, true, 0, 0)
	if len(unreadList) != 1 || unread != 1 || unreadList[0].Title != "Second" {
		t.Errorf("unread = %v (%d)", unreadList, unread)
	}

	if n, _ := db.MarkAllNotificationsRead(u.ID); n != 1 {
		t.Errorf("mark all changed %d, want 1", n)
	}
	if err := db.DeleteNotification(u.ID, n1.ID); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteNotification(u.ID, n1.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

// --- Soil result tests ---

func TestSoilResults(t *testing.T) {
	db := newTestDB(t)
	c := mustConsultant(t, db, "soil@test.pk")
	f, _ := db.CreateFarmer(c.ID, Farmer{FullName: "Soil", Email: "s@test.pk"})

	r, err := db.CreateSoilResult(SoilResult{
		FarmerID:      f.ID,
		SubmittedBy:   c.UserID,
		ImageURL:      "http://x/img.jpg",
		Label:         "Alluvial",
		Confidence:    0.91,
		Probabilities: map[string]float64{"Alluvial": 0.91, "Clay": 0.09},
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := db.GetSoilResult(r.ID)
	if err != nil || got == nil {
		t.Fatalf("get: %v", err)
	}
	if got.Probabilities["Clay"] != 0.09 {
		t.Errorf("probabilities = %v", got.Probabilities)
	}

	byConsultant, _ := db.ListSoilResults(SoilFilter{ConsultantID: c.ID})
	byFarmer, _ := db.ListSoilResults(SoilFilter{FarmerID: f.ID})
	if len(byConsultant) != 1 || len(byFarmer) != 1 {
		t.Errorf("consultant %d, farmer %d", len(byConsultant), len(byFarmer))
	}
	other := mustConsultant(t, db, "other@test.pk")
	if none, _ := db.ListSoilResults(SoilFilter{ConsultantID: other.ID}); len(none) != 0 {
		t.Errorf("other consultant sees %d results", len(none))
	}
	if _, err := db.ListSoilResults(SoilFilter{}); err == nil {
		t.Error("expected error for unscoped query")
	}
}

// --- Auth event tests ---

func TestAuthEvents(t *testing.T) {
	db := newTestDB(t)
	db.InsertAuthEvent("A@test.pk", AuthEventSignup, `{"role":"farmer"}`)
	db.InsertAuthEvent("b@test.pk", AuthEventLoginFailed, "")

	all, err := db.QueryAuthEvents("", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].EventType != AuthEventLoginFailed {
		t.Fatalf("events = %+v", all)
	}
	if all[0].Metadata != "{}" {
		t.Errorf("default metadata = %q", all[0].Metadata)
	}

	filtered, _ := db.QueryAuthEvents(AuthEventSignup, "a@", 10)
	if len(filtered) != 1 || filtered[0].Email != "a@test.pk" {
		t.Errorf("filtered = %+v", filtered)
	}

	if n, _ := db.CleanupAuthEvents(time.Hour); n != 0 {
		t.Errorf("cleanup removed %d recent events", n)
	}
}
