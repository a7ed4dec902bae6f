package database

import (
	"fmt"
	"log"

	"worklink_backend/internal/config"
	"worklink_backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var gormDB *gorm.DB

// ConnectGorm инициализирует GORM с URL из config.yaml
func ConnectGorm() (*gorm.DB, error) {
	if gormDB != nil {
		return gormDB, nil
	}

	cfg := config.GetConfig()
	dsn := cfg.Database.DSN

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to GORM: %w", err)
	}

	gormDB = db
	return db, nil
}

// AutoMigrate выполняет миграцию всех моделей и устанавливает
// триггеры change stream.
func AutoMigrate() error {
	db, err := ConnectGorm()
	if err != nil {
		return err
	}

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		return fmt.Errorf("failed to create uuid extension: %w", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.Message{},
		&models.Notification{},
	)
	if err != nil {
		log.Fatalf("AutoMigrate ошибка: %v", err)
	}

	if err := InstallStreamTriggers(db); err != nil {
		return fmt.Errorf("failed to install stream triggers: %w", err)
	}

	log.Println("AutoMigrate успешно завершен.")
	return nil
}

// InstallStreamTriggers создает NOTIFY-триггеры для conversations,
// messages и notifications. Пейлоад несет таблицу, операцию, строку
// и список получателей, чтобы диспетчер маршрутизировал без джойнов.
func InstallStreamTriggers(db *gorm.DB) error {
	cfg := config.GetConfig()
	channel := cfg.Stream.Channel

	statements := []string{
		fmt.Sprintf(`
CREATE OR REPLACE FUNCTION notify_conversation_change() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify('%s', json_build_object(
		'table', 'conversations',
		'op', TG_OP,
		'recipients', json_build_array(NEW.employer_id, NEW.worker_id),
		'row', row_to_json(NEW)
	)::text);
	RETURN NEW;
END;
$$ LANGUAGE plpgsql`, channel),

		fmt.Sprintf(`
CREATE OR REPLACE FUNCTION notify_message_change() RETURNS trigger AS $$
DECLARE
	conv conversations%%ROWTYPE;
BEGIN
	SELECT * INTO conv FROM conversations WHERE id = NEW.conversation_id;
	PERFORM pg_notify('%s', json_build_object(
		'table', 'messages',
		'op', TG_OP,
		'recipients', json_build_array(conv.employer_id, conv.worker_id),
		'row', row_to_json(NEW)
	)::text);
	RETURN NEW;
END;
$$ LANGUAGE plpgsql`, channel),

		fmt.Sprintf(`
CREATE OR REPLACE FUNCTION notify_notification_change() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify('%s', json_build_object(
		'table', 'notifications',
		'op', TG_OP,
		'recipients', json_build_array(NEW.user_id),
		'row', row_to_json(NEW)
	)::text);
	RETURN NEW;
END;
$$ LANGUAGE plpgsql`, channel),

		`DROP TRIGGER IF EXISTS conversations_notify ON conversations`,
		`CREATE TRIGGER conversations_notify
			AFTER INSERT OR UPDATE ON conversations
			FOR EACH ROW EXECUTE FUNCTION notify_conversation_change()`,

		`DROP TRIGGER IF EXISTS messages_notify ON messages`,
		`CREATE TRIGGER messages_notify
			AFTER INSERT OR UPDATE ON messages
			FOR EACH ROW EXECUTE FUNCTION notify_message_change()`,

		`DROP TRIGGER IF EXISTS notifications_notify ON notifications`,
		`CREATE TRIGGER notifications_notify
			AFTER INSERT OR UPDATE ON notifications
			FOR EACH ROW EXECUTE FUNCTION notify_notification_change()`,
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
