package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/m-sarabi/tutor-track/internal/model"
)

const uniqueViolation = "23505"

type Postgres struct {
	pool     *pgxpool.Pool
	notifier Notifier
}

func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func NewPostgres(pool *pgxpool.Pool, notifier Notifier) *Postgres {
	return &Postgres{pool: pool, notifier: notifier}
}

func (p *Postgres) notify(ctx context.Context, ev Event) {
	if p.notifier != nil {
		p.notifier.Notify(ctx, ev)
	}
}

// Tutors

func (p *Postgres) CreateTutor(ctx context.Context, tutor model.Tutor) (model.Tutor, error) {
	tutor.ID = uuid.NewString()
	tutor.CreatedAt = time.Now().UTC()
	_, err := p.pool.Exec(ctx, `
		INSERT INTO tutors (id, email, name, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, tutor.ID, tutor.Email, tutor.Name, tutor.PasswordHash, tutor.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.Tutor{}, ErrEmailExists
		}
		return model.Tutor{}, err
	}
	return tutor, nil
}

func (p *Postgres) GetTutorByEmail(ctx context.Context, email string) (model.Tutor, error) {
	return p.scanTutor(p.pool.QueryRow(ctx, `
		SELECT id, email, name, password_hash, created_at
		FROM tutors
		WHERE email = $1
	`, email))
}

func (p *Postgres) GetTutorByID(ctx context.Context, id string) (model.Tutor, error) {
	return p.scanTutor(p.pool.QueryRow(ctx, `
		SELECT id, email, name, password_hash, created_at
		FROM tutors
		WHERE id = $1
	`, id))
}

func (p *Postgres) scanTutor(row pgx.Row) (model.Tutor, error) {
	var tutor model.Tutor
	err := row.Scan(&tutor.ID, &tutor.Email, &tutor.Name, &tutor.PasswordHash, &tutor.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Tutor{}, ErrNotFound
	}
	return tutor, err
}

// Students

func (p *Postgres) CreateStudent(ctx context.Context, student model.Student) (model.Student, error) {
	student.ID = uuid.NewString()
	dates, syllabus, err := marshalStudentArrays(student)
	if err != nil {
		return model.Student{}, err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO students (id, tutor_id, name, subject, contact, status, dates, notes, syllabus)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, student.ID, student.TutorID, student.Name, student.Subject, student.Contact,
		student.Status, dates, student.Notes, syllabus)
	if err != nil {
		return model.Student{}, err
	}
	p.notify(ctx, Event{Collection: CollectionStudents, TutorID: student.TutorID, StudentID: student.ID})
	return student, nil
}

func (p *Postgres) GetStudent(ctx context.Context, id string) (model.Student, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, tutor_id, name, subject, contact, status, dates, notes, syllabus
		FROM students
		WHERE id = $1
	`, id)
	return scanStudent(row)
}

func (p *Postgres) ListStudents(ctx context.Context, filter StudentFilter) ([]model.Student, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, tutor_id, name, subject, contact, status, dates, notes, syllabus
		FROM students
		WHERE tutor_id = $1 AND ($2 = '' OR status = $2)
	`, filter.TutorID, filter.Status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []model.Student
	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, student)
	}
	return students, rows.Err()
}

func (p *Postgres) UpdateStudent(ctx context.Context, id string, update StudentUpdate) error {
	sets := make([]string, 0, 6)
	args := []interface{}{id}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Name != nil {
		add("name", *update.Name)
	}
	if update.Subject != nil {
		add("subject", *update.Subject)
	}
	if update.Contact != nil {
		add("contact", *update.Contact)
	}
	if update.Status != nil {
		add("status", *update.Status)
	}
	if update.Notes != nil {
		add("notes", *update.Notes)
	}
	if update.Dates != nil {
		dates, err := json.Marshal(*update.Dates)
		if err != nil {
			return err
		}
		add("dates", dates)
	}
	if len(sets) == 0 {
		return nil
	}

	query := fmt.Sprintf(`UPDATE students SET %s WHERE id = $1 RETURNING tutor_id`, strings.Join(sets, ", "))
	var tutorID string
	if err := p.pool.QueryRow(ctx, query, args...).Scan(&tutorID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	p.notify(ctx, Event{Collection: CollectionStudents, TutorID: tutorID, StudentID: id})
	return nil
}

func (p *Postgres) AppendTopic(ctx context.Context, id string, topic model.Topic) error {
	payload, err := json.Marshal(topic)
	if err != nil {
		return err
	}
	var tutorID string
	err = p.pool.QueryRow(ctx, `
		UPDATE students
		SET syllabus = syllabus || $2::jsonb
		WHERE id = $1
		RETURNING tutor_id
	`, id, payload).Scan(&tutorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	p.notify(ctx, Event{Collection: CollectionStudents, TutorID: tutorID, StudentID: id})
	return nil
}

func (p *Postgres) ReplaceSyllabus(ctx context.Context, id string, syllabus []model.Topic) error {
	payload, err := json.Marshal(emptyIfNilTopics(syllabus))
	if err != nil {
		return err
	}
	var tutorID string
	err = p.pool.QueryRow(ctx, `
		UPDATE students
		SET syllabus = $2
		WHERE id = $1
		RETURNING tutor_id
	`, id, payload).Scan(&tutorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	p.notify(ctx, Event{Collection: CollectionStudents, TutorID: tutorID, StudentID: id})
	return nil
}

func (p *Postgres) DeleteStudent(ctx context.Context, id string) error {
	var tutorID string
	err := p.pool.QueryRow(ctx, `
		DELETE FROM students
		WHERE id = $1
		RETURNING tutor_id
	`, id).Scan(&tutorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	p.notify(ctx, Event{Collection: CollectionStudents, TutorID: tutorID, StudentID: id})
	return nil
}

// Sessions

func (p *Postgres) CreateSession(ctx context.Context, session model.Session) (model.Session, error) {
	session.ID = uuid.NewString()
	covered, err := json.Marshal(emptyIfNilStrings(session.CoveredTopicIDs))
	if err != nil {
		return model.Session{}, err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO sessions (id, student_id, tutor_id, date, duration_minutes, notes, next_steps, covered_topic_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, session.ID, session.StudentID, session.TutorID, session.Date, session.Duration,
		session.Notes, session.NextSteps, covered)
	if err != nil {
		return model.Session{}, err
	}
	p.notify(ctx, Event{Collection: CollectionSessions, TutorID: session.TutorID, StudentID: session.StudentID})
	return session, nil
}

func (p *Postgres) GetSession(ctx context.Context, id string) (model.Session, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, student_id, tutor_id, date, duration_minutes, notes, next_steps, covered_topic_ids
		FROM sessions
		WHERE id = $1
	`, id)
	return scanSession(row)
}

func (p *Postgres) ListSessions(ctx context.Context, filter SessionFilter) ([]model.Session, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, student_id, tutor_id, date, duration_minutes, notes, next_steps, covered_topic_ids
		FROM sessions
		WHERE student_id = $1 AND ($2::text = '' OR tutor_id::text = $2::text)
		ORDER BY date DESC
	`, filter.StudentID, filter.TutorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (p *Postgres) DeleteSession(ctx context.Context, id string) error {
	var studentID, tutorID string
	err := p.pool.QueryRow(ctx, `
		DELETE FROM sessions
		WHERE id = $1
		RETURNING student_id, tutor_id
	`, id).Scan(&studentID, &tutorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	p.notify(ctx, Event{Collection: CollectionSessions, TutorID: tutorID, StudentID: studentID})
	return nil
}

// DeleteSessions batch-deletes by id, the writeBatch leg of the two-phase
// student delete. One event per touched student.
func (p *Postgres) DeleteSessions(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	rows, err := p.pool.Query(ctx, `
		DELETE FROM sessions
		WHERE id = ANY($1)
		RETURNING student_id, tutor_id
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	touched := make(map[Event]struct{})
	for rows.Next() {
		var studentID, tutorID string
		if err := rows.Scan(&studentID, &tutorID); err != nil {
			return err
		}
		touched[Event{Collection: CollectionSessions, TutorID: tutorID, StudentID: studentID}] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for ev := range touched {
		p.notify(ctx, ev)
	}
	return nil
}

// Scan helpers

func scanStudent(row pgx.Row) (model.Student, error) {
	var student model.Student
	var dates, syllabus []byte
	err := row.Scan(&student.ID, &student.TutorID, &student.Name, &student.Subject,
		&student.Contact, &student.Status, &dates, &student.Notes, &syllabus)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Student{}, ErrNotFound
	}
	if err != nil {
		return model.Student{}, err
	}
	if err := json.Unmarshal(dates, &student.Dates); err != nil {
		return model.Student{}, err
	}
	if err := json.Unmarshal(syllabus, &student.Syllabus); err != nil {
		return model.Student{}, err
	}
	return student, nil
}

func scanSession(row pgx.Row) (model.Session, error) {
	var session model.Session
	var covered []byte
	err := row.Scan(&session.ID, &session.StudentID, &session.TutorID, &session.Date,
		&session.Duration, &session.Notes, &session.NextSteps, &covered)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Session{}, ErrNotFound
	}
	if err != nil {
		return model.Session{}, err
	}
	if err := json.Unmarshal(covered, &session.CoveredTopicIDs); err != nil {
		return model.Session{}, err
	}
	return session, nil
}

func marshalStudentArrays(student model.Student) ([]byte, []byte, error) {
	dates, err := json.Marshal(emptyIfNilStrings(student.Dates))
	if err != nil {
		return nil, nil, err
	}
	syllabus, err := json.Marshal(emptyIfNilTopics(student.Syllabus))
	if err != nil {
		return nil, nil, err
	}
	return dates, syllabus, nil
}

func emptyIfNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func emptyIfNilTopics(topics []model.Topic) []model.Topic {
	if topics == nil {
		return []model.Topic{}
	}
	return topics
}
