package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xelth-com/eckdesk/internal/config"
	"github.com/xelth-com/eckdesk/internal/database"
	"github.com/xelth-com/eckdesk/internal/models"
	"github.com/xelth-com/eckdesk/internal/reporting"
	"github.com/xelth-com/eckdesk/internal/services/requests"
	"github.com/xelth-com/eckdesk/internal/utils"
)

// importNamespace maps document-store IDs onto stable request UUIDs
var importNamespace = uuid.MustParse("6f1c3c52-7a0e-4c43-9b55-3f1f8c2b7d10")

// exportedRequest is one document of a request collection export. Dates arrive in
// whatever shape the exporter produced.
type exportedRequest struct {
	ID             string `json:"id"`
	Requester      string `json:"requester"`
	RequesterUID   string `json:"requesterUID"`
	RequesterEmail string `json:"requesterEmail"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Technician     string `json:"technician"`
	Status         string `json:"status"`
	Priority       string `json:"priority"`
	Site           string `json:"site"`
	Date           any    `json:"date"`
	UpdatedBy      string `json:"updatedBy"`
	Attachments    []struct {
		FileName           string `json:"fileName"`
		FileType           string `json:"fileType"`
		FileSize           int64  `json:"fileSize"`
		CloudinaryURL      string `json:"cloudinaryUrl"`
		CloudinaryPublicID string `json:"cloudinaryPublicId"`
		UploadedAt         any    `json:"uploadedAt"`
	} `json:"attachments"`
}

func main() {
	fmt.Println("🌱 eckdesk Demo Data Seeder")
	fmt.Println(strings.Repeat("=", 60))

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	fmt.Println("✅ Connected to database")
	fmt.Println()

	// Run migrations first
	fmt.Println("🔨 Running database migrations...")
	if err := db.Migrate(); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	fmt.Println("✅ Migrations complete")
	fmt.Println()

	// Check if data already exists
	var requestCount int64
	db.Model(&models.Request{}).Count(&requestCount)
	if requestCount > 0 {
		fmt.Printf("⚠️  Database already has %d requests. Clear it first? (y/N): ", requestCount)
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("❌ Aborted. Database not modified.")
			return
		}

		// Clear existing data
		fmt.Println("🗑️  Clearing existing data...")
		db.Exec("TRUNCATE TABLE request_events")
		db.Exec("TRUNCATE TABLE request_attachments")
		db.Exec("TRUNCATE TABLE requests CASCADE")
		fmt.Println("✅ Data cleared")
	}

	// 1. Accounts
	admin := seedUser(db, cfg, "admin@eckdesk.local", "Desk Admin", models.RoleAdmin)
	user := seedUser(db, cfg, "user@eckdesk.local", "Demo User", models.RoleUser)

	// 2. Requests: imported from an export file when one is given, generated otherwise
	var list []models.Request
	if len(os.Args) > 1 {
		fmt.Printf("📥 Importing requests from %s...\n", os.Args[1])
		list, err = importFile(os.Args[1])
		if err != nil {
			log.Fatalf("❌ Import failed: %v", err)
		}
	} else {
		fmt.Println("📦 Generating demo requests...")
		list = generate([]*models.UserAuth{admin, user}, time.Now().UTC())
	}

	created, undated := 0, 0
	for i := range list {
		r := &list[i]
		if r.Date == nil {
			undated++
		}
		if err := db.Create(r).Error; err != nil {
			log.Printf("⚠️  Failed to create request %s: %v", r.ID, err)
			continue
		}
		created++
	}

	fmt.Printf("✅ Created %d requests", created)
	if undated > 0 {
		fmt.Printf(" (%d without a usable date, hidden from reports)", undated)
	}
	fmt.Println()
	fmt.Println()
	fmt.Println("🔑 Logins: admin@eckdesk.local / user@eckdesk.local, password from DEMO_PASSWORD (default demo1234)")
}

func seedUser(db *database.DB, cfg *config.Config, email, name, role string) *models.UserAuth {
	var existing models.UserAuth
	if err := db.Where("email = ?", email).First(&existing).Error; err == nil {
		fmt.Printf("   ✓ Account exists: %s\n", email)
		return &existing
	}

	password := os.Getenv("DEMO_PASSWORD")
	if password == "" {
		password = "demo1234"
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		log.Fatalf("❌ Failed to hash password: %v", err)
	}
	if cfg.IsAdminEmail(email) {
		role = models.RoleAdmin
	}

	u := &models.UserAuth{Username: email, Email: email, Password: hash, Name: name, Role: role, IsActive: true}
	if err := db.Create(u).Error; err != nil {
		log.Fatalf("❌ Failed to create account %s: %v", email, err)
	}
	fmt.Printf("   ✓ Created account: %s (%s)\n", email, role)
	return u
}

func importFile(path string) ([]models.Request, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var docs []exportedRequest
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	out := make([]models.Request, 0, len(docs))
	for _, d := range docs {
		id := d.ID
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewSHA1(importNamespace, []byte(d.ID)).String()
		}

		r := models.Request{
			ID:             id,
			Title:          requests.DeriveTitle(d.Description),
			Name:           d.Name,
			Description:    d.Description,
			Requester:      d.Requester,
			RequesterUID:   d.RequesterUID,
			RequesterEmail: d.RequesterEmail,
			Technician:     d.Technician,
			Status:         d.Status,
			Priority:       d.Priority,
			Site:           d.Site,
			UpdatedBy:      d.UpdatedBy,
		}
		if t, ok := reporting.UsableDate(d.Date); ok {
			t = t.UTC()
			r.Date = &t
		}
		for i, a := range d.Attachments {
			uploaded, _ := reporting.UsableDate(a.UploadedAt)
			r.Attachments = append(r.Attachments, models.Attachment{
				ID:                 uuid.NewString(),
				RequestID:          id,
				Position:           i,
				FileName:           a.FileName,
				FileType:           a.FileType,
				FileSize:           a.FileSize,
				CloudinaryURL:      a.CloudinaryURL,
				CloudinaryPublicID: a.CloudinaryPublicID,
				UploadedAt:         uploaded,
			})
		}
		out = append(out, r)
	}
	return out, nil
}

var demoProblems = []string{
	"Laptop will not boot after update",
	"Printer on 2nd floor jams on every job",
	"Cannot connect to VPN from home",
	"Outlook keeps asking for password",
	"Need access to shared finance drive",
	"Projector in meeting room has no signal",
	"Phone extension not ringing",
	"New starter needs an account",
	"Wi-Fi drops in the workshop",
	"Scanner software license expired",
}

// generate spreads demo requests over the last 45 days so both report windows have data
func generate(owners []*models.UserAuth, now time.Time) []models.Request {
	rng := rand.New(rand.NewSource(42))
	out := make([]models.Request, 0, 40)
	for i := 0; i < 40; i++ {
		owner := owners[i%len(owners)]
		problem := demoProblems[rng.Intn(len(demoProblems))]
		date := now.Add(-time.Duration(rng.Intn(45*24)) * time.Hour)

		r := models.Request{
			ID:             uuid.NewString(),
			Title:          requests.DeriveTitle(problem),
			Description:    problem + "\nReported via the demo seeder.",
			Requester:      owner.Name,
			RequesterUID:   owner.ID,
			RequesterEmail: owner.Email,
			Status:         models.Statuses[rng.Intn(len(models.Statuses))],
			Priority:       models.Priorities[rng.Intn(len(models.Priorities))],
			Site:           models.Sites[rng.Intn(len(models.Sites))],
			Date:           &date,
		}
		if r.Status != models.StatusUnassigned && r.Status != models.StatusOpen {
			r.Technician = models.Technicians[rng.Intn(len(models.Technicians))]
		}
		out = append(out, r)
	}
	return out
}
