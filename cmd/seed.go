package cmd

import (
	"context"

	"example.com/backstage/services/taxonomy/config"
	"example.com/backstage/services/taxonomy/internal/database"
	"example.com/backstage/services/taxonomy/internal/models"
	"example.com/backstage/services/taxonomy/internal/repositories"
	"example.com/backstage/services/taxonomy/internal/services"
	"example.com/backstage/services/taxonomy/internal/tracing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed a starter taxonomy",
	Long:  `Populate the database with a small set of sample events and properties`,
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return err
	}

	db, err := database.Connect(cfg.DB)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		return err
	}

	store := repositories.NewGormStore(db)
	eventService := services.NewEventService(store, nil, nil, &tracing.NewRelicTracer{})

	ctx := context.Background()

	existing, err := store.Events().List(ctx, "", "")
	if err != nil {
		return errors.Wrap(err, "failed to list existing events")
	}
	present := make(map[string]bool, len(existing))
	for _, e := range existing {
		present[e.Name] = true
	}

	created := 0
	for _, in := range seedEvents() {
		if present[in.Name] {
			log.Info().Str("event", in.Name).Msg("Seed event already present, skipping")
			continue
		}
		if _, err := eventService.Create(ctx, in); err != nil {
			log.Error().Err(err).Str("event", in.Name).Msg("Failed to seed event")
			continue
		}
		created++
		log.Info().Str("event", in.Name).Msg("Seeded event")
	}

	log.Info().Int("created", created).Msg("Seeding complete")
	return nil
}

func seedEvents() []models.EventInput {
	admin := "admin@example.com"
	str := func(s string) *string { return &s }

	return []models.EventInput{
		{
			Name:        "Content Shared",
			Description: str("User shares content to an external platform"),
			Category:    str("Engagement"),
			CreatedBy:   &admin,
			Properties: []models.EventPropertyInput{
				{PropertyName: "content_id", PropertyType: models.RoleEvent, DataType: "String", IsRequired: true,
					ExampleValue: str("abc123"), Description: str("Unique identifier for the shared content")},
				{PropertyName: "share_method", PropertyType: models.RoleEvent, DataType: "String", IsRequired: true,
					ExampleValue: str("copy_link"), Description: str("Method used to share (copy_link, email, social)")},
				{PropertyName: "user_id", PropertyType: models.RoleUser, DataType: "String",
					ExampleValue: str("user_789"), Description: str("Unique user identifier")},
			},
		},
		{
			Name:        "Screen Viewed",
			Description: str("User views a screen or page"),
			Category:    str("Navigation"),
			CreatedBy:   &admin,
			Properties: []models.EventPropertyInput{
				{PropertyName: "screen_name", PropertyType: models.RoleEvent, DataType: "String", IsRequired: true,
					ExampleValue: str("home_screen"), Description: str("Name of the screen viewed")},
				{PropertyName: "referrer", PropertyType: models.RoleEvent, DataType: "String",
					ExampleValue: str("search"), Description: str("Previous screen or referrer source")},
				{PropertyName: "user_id", PropertyType: models.RoleUser, DataType: "String",
					ExampleValue: str("user_789")},
			},
		},
		{
			Name:        "Purchase Completed",
			Description: str("User successfully completes a purchase"),
			Category:    str("Transaction"),
			CreatedBy:   &admin,
			Properties: []models.EventPropertyInput{
				{PropertyName: "order_id", PropertyType: models.RoleEvent, DataType: "String", IsRequired: true,
					ExampleValue: str("ORD-12345")},
				{PropertyName: "total_amount", PropertyType: models.RoleEvent, DataType: "Float", IsRequired: true,
					ExampleValue: str("49.99")},
				{PropertyName: "currency", PropertyType: models.RoleEvent, DataType: "String", IsRequired: true,
					ExampleValue: str("USD")},
				{PropertyName: "user_id", PropertyType: models.RoleUser, DataType: "String", IsRequired: true,
					ExampleValue: str("user_789")},
			},
		},
		{
			Name:        "Button Clicked",
			Description: str("User clicks an interactive button element"),
			Category:    str("Engagement"),
			CreatedBy:   &admin,
			Properties: []models.EventPropertyInput{
				{PropertyName: "button_name", PropertyType: models.RoleEvent, DataType: "String", IsRequired: true,
					ExampleValue: str("signup_cta")},
				{PropertyName: "button_location", PropertyType: models.RoleEvent, DataType: "String",
					ExampleValue: str("header")},
			},
		},
		{
			Name:        "User Signup",
			Description: str("New user completes registration"),
			Category:    str("User"),
			CreatedBy:   &admin,
			Properties: []models.EventPropertyInput{
				{PropertyName: "signup_method", PropertyType: models.RoleEvent, DataType: "String", IsRequired: true,
					ExampleValue: str("email")},
				{PropertyName: "user_id", PropertyType: models.RoleUser, DataType: "String", IsRequired: true,
					ExampleValue: str("user_123")},
				{PropertyName: "referral_code", PropertyType: models.RoleEvent, DataType: "String",
					ExampleValue: str("FRIEND20")},
			},
		},
	}
}
