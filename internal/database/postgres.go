package database

import (
	"context"
	"errors"
	"fmt"

	"chatline/internal/models"
	"chatline/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(databaseURL string) (*PostgresDB, error) {
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database successfully")
	return &PostgresDB{pool: pool}, nil
}

func (db *PostgresDB) Close() error {
	db.pool.Close()
	return nil
}

// User Repository Implementation
func (db *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, user_name, email, password_hash, created_at FROM users WHERE email = $1`

	user := &models.User{}
	err := db.pool.QueryRow(ctx, query, email).Scan(
		&user.ID, &user.UserName, &user.Email, &user.PasswordHash, &user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (db *PostgresDB) CreateUser(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	query := `
		INSERT INTO users (user_name, email, password_hash, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, user_name, email, created_at`

	user := &models.User{PasswordHash: string(hash)}
	err = db.pool.QueryRow(ctx, query, req.UserName, req.Email, string(hash)).Scan(
		&user.ID, &user.UserName, &user.Email, &user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

func (db *PostgresDB) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	query := `SELECT id, user_name, email, created_at FROM users WHERE id = $1`

	user := &models.User{}
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.UserName, &user.Email, &user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

// Room Repository Implementation
func (db *PostgresDB) CreateRoom(ctx context.Context, req *models.CreateRoomRequest, ownerID int) (*models.Room, error) {
	query := `
		INSERT INTO rooms (name, owner_id, created_at)
		VALUES ($1, $2, NOW())
		RETURNING id, name, owner_id, created_at`

	room := &models.Room{}
	err := db.pool.QueryRow(ctx, query, req.ChatRoomName, ownerID).Scan(
		&room.ID, &room.ChatRoomName, &room.OwnerID, &room.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	return room, nil
}

func (db *PostgresDB) GetRoomByID(ctx context.Context, id int) (*models.Room, error) {
	query := `SELECT id, name, owner_id, created_at FROM rooms WHERE id = $1`

	room := &models.Room{}
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&room.ID, &room.ChatRoomName, &room.OwnerID, &room.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return room, nil
}

func (db *PostgresDB) ListRooms(ctx context.Context) ([]*models.Room, error) {
	query := `SELECT id, name, owner_id, created_at FROM rooms ORDER BY id DESC`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []*models.Room
	for rows.Next() {
		room := &models.Room{}
		if err := rows.Scan(&room.ID, &room.ChatRoomName, &room.OwnerID, &room.CreatedAt); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

// Message Repository Implementation
func (db *PostgresDB) SaveMessage(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (id, room_id, sender_user_name, content, sent_date)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := db.pool.Exec(ctx, query, msg.ID, msg.RoomID, msg.SenderUserName, msg.Content, msg.SentDate)
	return err
}

func (db *PostgresDB) LoadMessagePage(ctx context.Context, roomID, skip, take int) ([]*models.Message, error) {
	query := `
		SELECT id, room_id, sender_user_name, content, sent_date
		FROM messages
		WHERE room_id = $1
		ORDER BY sent_date DESC, id DESC
		OFFSET $2 LIMIT $3`

	rows, err := db.pool.Query(ctx, query, roomID, skip, take)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.SenderUserName, &msg.Content, &msg.SentDate); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to show oldest first within the page
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}
