package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/worker-lifecycle/internal/core/worker"
	pgdb "github.com/ogurasousui/worker-lifecycle/internal/platform/db/postgres"
)

const (
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"
	checkViolationCode      = "23514"

	workersCandidateConstraint = "workers_tenant_candidate_key"
	workersCodeConstraint      = "workers_tenant_code_key"
)

const workerColumns = `w.id, w.tenant_id, w.worker_code, w.candidate_id, w.status, w.status_changed_at, w.status_reason,
               w.activated_at, w.terminated_at, w.termination_reason,
               w.full_name_en, w.full_name_ar, w.nationality, w.date_of_birth, w.gender, w.passport_number, w.passport_expiry,
               w.phone, w.email, w.religion, w.marital_status, w.education_level, w.job_category_id::text, w.experience_years,
               w.monthly_salary::text, w.photo_url, w.video_url, w.passport_document_url, w.source_type, w.tenant_supplier_id::text,
               w.version, w.created_at, w.updated_at, w.deleted_at`

// WorkerRepository は PostgreSQL を利用したワーカー永続化の実装です。
type WorkerRepository struct {
	pool pgdb.Queryer
}

// NewWorkerRepository は WorkerRepository を生成します。
func NewWorkerRepository(pool pgdb.Queryer) *WorkerRepository {
	return &WorkerRepository{pool: pool}
}

// Create はワーカーとスキル・言語を登録します。呼び出し側のトランザクション内で実行されることを前提とします。
func (r *WorkerRepository) Create(ctx context.Context, w *worker.Worker) (*worker.Worker, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	p := w.Profile
	row := exec.QueryRow(ctx, `
        WITH w AS (
            INSERT INTO workers (
                id, tenant_id, worker_code, candidate_id, status, status_changed_at, status_reason,
                activated_at, terminated_at, termination_reason,
                full_name_en, full_name_ar, nationality, date_of_birth, gender, passport_number, passport_expiry,
                phone, email, religion, marital_status, education_level, job_category_id, experience_years,
                monthly_salary, photo_url, video_url, passport_document_url, source_type, tenant_supplier_id,
                version, created_at, updated_at
            )
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
                    $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
                    $21, $22, $23, $24, $25::text::numeric, $26, $27, $28, $29, $30,
                    1, $31, $32)
            RETURNING *
        )
        SELECT `+workerColumns+`
          FROM w
    `,
		w.ID,
		w.TenantID,
		w.WorkerCode,
		w.CandidateID,
		string(w.Status),
		nullableTimestamp(w.StatusChangedAt),
		nullableString(w.StatusReason),
		nullableTimestamp(w.ActivatedAt),
		nullableTimestamp(w.TerminatedAt),
		nullableString(w.TerminationReason),
		p.FullNameEn,
		nullableString(p.FullNameAr),
		p.Nationality,
		nullableDate(p.DateOfBirth),
		nullableString(p.Gender),
		nullableString(p.PassportNumber),
		nullableDate(p.PassportExpiry),
		nullableString(p.Phone),
		nullableString(p.Email),
		nullableString(p.Religion),
		nullableString(p.MaritalStatus),
		nullableString(p.EducationLevel),
		nullableString(p.JobCategoryID),
		nullableInt(p.ExperienceYears),
		nullableString(p.MonthlySalary),
		nullableString(p.PhotoURL),
		nullableString(p.VideoURL),
		nullableString(p.PassportDocumentURL),
		p.SourceType,
		nullableString(p.TenantSupplierID),
		w.CreatedAt,
		w.UpdatedAt,
	)

	created, err := scanWorker(row)
	if err != nil {
		return nil, translateWorkerPgError(err)
	}

	if err := insertChildren(ctx, exec, created.ID, w.Skills, w.Languages); err != nil {
		return nil, err
	}

	created.Skills = append([]worker.Skill(nil), w.Skills...)
	created.Languages = append([]worker.Language(nil), w.Languages...)
	return created, nil
}

// Update はライフサイクル列を楽観ロック付きで更新します。
func (r *WorkerRepository) Update(ctx context.Context, w *worker.Worker) (*worker.Worker, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE workers
           SET status = $1,
               status_changed_at = $2,
               status_reason = $3,
               activated_at = $4,
               terminated_at = $5,
               termination_reason = $6,
               updated_at = $7,
               version = version + 1
         WHERE tenant_id = $8 AND id = $9 AND version = $10 AND deleted_at IS NULL
        RETURNING version
    `,
		string(w.Status),
		nullableTimestamp(w.StatusChangedAt),
		nullableString(w.StatusReason),
		nullableTimestamp(w.ActivatedAt),
		nullableTimestamp(w.TerminatedAt),
		nullableString(w.TerminationReason),
		w.UpdatedAt,
		w.TenantID,
		w.ID,
		w.Version,
	)

	var version int64
	if err := row.Scan(&version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, worker.ErrConcurrentModification
		}
		return nil, translateWorkerPgError(err)
	}

	updated := *w
	updated.Version = version
	return &updated, nil
}

// UpdateProfile はプロフィール列を楽観ロック付きで更新し、スキルと言語を置き換えます。
// ライフサイクル列には触れません。
func (r *WorkerRepository) UpdateProfile(ctx context.Context, w *worker.Worker) (*worker.Worker, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	p := w.Profile
	row := exec.QueryRow(ctx, `
        UPDATE workers
           SET full_name_en = $1,
               full_name_ar = $2,
               nationality = $3,
               date_of_birth = $4,
               gender = $5,
               passport_number = $6,
               passport_expiry = $7,
               phone = $8,
               email = $9,
               religion = $10,
               marital_status = $11,
               education_level = $12,
               job_category_id = $13,
               experience_years = $14,
               monthly_salary = $15::text::numeric,
               photo_url = $16,
               video_url = $17,
               passport_document_url = $18,
               source_type = $19,
               tenant_supplier_id = $20,
               updated_at = $21,
               version = version + 1
         WHERE tenant_id = $22 AND id = $23 AND version = $24 AND deleted_at IS NULL
        RETURNING version
    `,
		p.FullNameEn,
		nullableString(p.FullNameAr),
		p.Nationality,
		nullableDate(p.DateOfBirth),
		nullableString(p.Gender),
		nullableString(p.PassportNumber),
		nullableDate(p.PassportExpiry),
		nullableString(p.Phone),
		nullableString(p.Email),
		nullableString(p.Religion),
		nullableString(p.MaritalStatus),
		nullableString(p.EducationLevel),
		nullableString(p.JobCategoryID),
		nullableInt(p.ExperienceYears),
		nullableString(p.MonthlySalary),
		nullableString(p.PhotoURL),
		nullableString(p.VideoURL),
		nullableString(p.PassportDocumentURL),
		p.SourceType,
		nullableString(p.TenantSupplierID),
		w.UpdatedAt,
		w.TenantID,
		w.ID,
		w.Version,
	)

	var version int64
	if err := row.Scan(&version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, worker.ErrConcurrentModification
		}
		return nil, translateWorkerPgError(err)
	}

	if _, err := exec.Exec(ctx, `DELETE FROM worker_skills WHERE worker_id = $1`, w.ID); err != nil {
		return nil, translateWorkerPgError(err)
	}
	if _, err := exec.Exec(ctx, `DELETE FROM worker_languages WHERE worker_id = $1`, w.ID); err != nil {
		return nil, translateWorkerPgError(err)
	}
	if err := insertChildren(ctx, exec, w.ID, w.Skills, w.Languages); err != nil {
		return nil, err
	}

	updated := *w
	updated.Version = version
	updated.Skills = append([]worker.Skill(nil), w.Skills...)
	updated.Languages = append([]worker.Language(nil), w.Languages...)
	return &updated, nil
}

func insertChildren(ctx context.Context, exec pgdb.Queryer, workerID string, skills []worker.Skill, languages []worker.Language) error {
	for _, s := range skills {
		if _, err := exec.Exec(ctx, `
            INSERT INTO worker_skills (worker_id, skill_name, proficiency_level)
            VALUES ($1, $2, $3)
        `, workerID, s.SkillName, s.ProficiencyLevel); err != nil {
			return translateWorkerPgError(err)
		}
	}
	for _, l := range languages {
		if _, err := exec.Exec(ctx, `
            INSERT INTO worker_languages (worker_id, language, proficiency_level)
            VALUES ($1, $2, $3)
        `, workerID, l.Language, l.ProficiencyLevel); err != nil {
			return translateWorkerPgError(err)
		}
	}
	return nil
}

// FindByID はテナント内の未削除ワーカーを取得します。
func (r *WorkerRepository) FindByID(ctx context.Context, tenantID, id string) (*worker.Worker, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+workerColumns+`
          FROM workers w
         WHERE w.tenant_id = $1 AND w.id = $2 AND w.deleted_at IS NULL
         LIMIT 1
    `, tenantID, id)

	found, err := scanWorker(row)
	if err != nil {
		return nil, translateWorkerPgError(err)
	}

	if err := r.loadChildren(ctx, exec, []*worker.Worker{found}); err != nil {
		return nil, err
	}
	return found, nil
}

// FindByCandidate は候補者 ID でワーカーを取得します。論理削除済みも対象です。
func (r *WorkerRepository) FindByCandidate(ctx context.Context, tenantID, candidateID string) (*worker.Worker, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+workerColumns+`
          FROM workers w
         WHERE w.tenant_id = $1 AND w.candidate_id = $2
         LIMIT 1
    `, tenantID, candidateID)

	found, err := scanWorker(row)
	if err != nil {
		return nil, translateWorkerPgError(err)
	}
	return found, nil
}

// MaxWorkerCode はテナント内で最大のワーカーコードを返します。存在しない場合は空文字です。
func (r *WorkerRepository) MaxWorkerCode(ctx context.Context, tenantID string) (string, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT worker_code
          FROM workers
         WHERE tenant_id = $1 AND worker_code LIKE 'WRK-%'
         ORDER BY length(worker_code) DESC, worker_code DESC
         LIMIT 1
    `, tenantID)

	var code string
	if err := row.Scan(&code); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return code, nil
}

// List はワーカーの一覧を取得します。
func (r *WorkerRepository) List(ctx context.Context, filter worker.ListWorkersFilter) ([]*worker.Worker, string, error) {
	if strings.TrimSpace(filter.TenantID) == "" {
		return nil, "", worker.ErrInvalidTenantID
	}
	if filter.Limit <= 0 {
		return nil, "", worker.ErrInvalidPageSize
	}
	if filter.Offset < 0 {
		return nil, "", worker.ErrInvalidPageToken
	}
	if filter.Statuses != nil && len(filter.Statuses) == 0 {
		return []*worker.Worker{}, "", nil
	}

	limitWithBuffer := filter.Limit + 1

	args := make([]any, 0, 4)
	conditions := make([]string, 0, 3)

	args = append(args, filter.TenantID)
	conditions = append(conditions, "w.tenant_id = $"+strconv.Itoa(len(args)), "w.deleted_at IS NULL")

	if filter.Statuses != nil {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		args = append(args, statuses)
		conditions = append(conditions, "w.status = ANY($"+strconv.Itoa(len(args))+")")
	}

	args = append(args, limitWithBuffer)
	limitPlaceholder := "$" + strconv.Itoa(len(args))
	args = append(args, filter.Offset)
	offsetPlaceholder := "$" + strconv.Itoa(len(args))

	query := `
        SELECT ` + workerColumns + `
          FROM workers w
         WHERE ` + strings.Join(conditions, " AND ") + `
         ORDER BY w.created_at DESC, w.id DESC
         LIMIT ` + limitPlaceholder + `
        OFFSET ` + offsetPlaceholder + `
    `

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, "", translateWorkerPgError(err)
	}

	workers := make([]*worker.Worker, 0, filter.Limit)
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			rows.Close()
			return nil, "", translateWorkerPgError(err)
		}
		workers = append(workers, w)
	}
	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, "", translateWorkerPgError(err)
	}

	var nextToken string
	if len(workers) == limitWithBuffer {
		workers = workers[:filter.Limit]
		nextToken = strconv.Itoa(filter.Offset + filter.Limit)
	}

	if err := r.loadChildren(ctx, exec, workers); err != nil {
		return nil, "", err
	}

	return workers, nextToken, nil
}

// SoftDelete はワーカーを論理削除します。
func (r *WorkerRepository) SoftDelete(ctx context.Context, tenantID, id string, at time.Time) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `
        UPDATE workers
           SET deleted_at = $1,
               updated_at = $1,
               version = version + 1
         WHERE tenant_id = $2 AND id = $3 AND deleted_at IS NULL
    `, at, tenantID, id)
	if err != nil {
		return translateWorkerPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return worker.ErrWorkerNotFound
	}
	return nil
}

// loadChildren はスキルと言語をまとめて読み込みます。
func (r *WorkerRepository) loadChildren(ctx context.Context, exec pgdb.Queryer, workers []*worker.Worker) error {
	if len(workers) == 0 {
		return nil
	}

	ids := make([]string, 0, len(workers))
	byID := make(map[string]*worker.Worker, len(workers))
	for _, w := range workers {
		ids = append(ids, w.ID)
		byID[w.ID] = w
	}

	rows, err := exec.Query(ctx, `
        SELECT worker_id::text, skill_name, proficiency_level
          FROM worker_skills
         WHERE worker_id = ANY($1)
         ORDER BY worker_id, id
    `, ids)
	if err != nil {
		return translateWorkerPgError(err)
	}
	for rows.Next() {
		var workerID string
		var s worker.Skill
		if err := rows.Scan(&workerID, &s.SkillName, &s.ProficiencyLevel); err != nil {
			rows.Close()
			return err
		}
		if w, ok := byID[workerID]; ok {
			w.Skills = append(w.Skills, s)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return translateWorkerPgError(err)
	}

	rows, err = exec.Query(ctx, `
        SELECT worker_id::text, language, proficiency_level
          FROM worker_languages
         WHERE worker_id = ANY($1)
         ORDER BY worker_id, id
    `, ids)
	if err != nil {
		return translateWorkerPgError(err)
	}
	for rows.Next() {
		var workerID string
		var l worker.Language
		if err := rows.Scan(&workerID, &l.Language, &l.ProficiencyLevel); err != nil {
			rows.Close()
			return err
		}
		if w, ok := byID[workerID]; ok {
			w.Languages = append(w.Languages, l)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return translateWorkerPgError(err)
	}

	return nil
}

func scanWorker(row pgx.Row) (*worker.Worker, error) {
	var (
		w                   worker.Worker
		status              string
		statusChangedAt     sql.NullTime
		statusReason        sql.NullString
		activatedAt         sql.NullTime
		terminatedAt        sql.NullTime
		terminationReason   sql.NullString
		fullNameAr          sql.NullString
		dateOfBirth         sql.NullTime
		gender              sql.NullString
		passportNumber      sql.NullString
		passportExpiry      sql.NullTime
		phone               sql.NullString
		email               sql.NullString
		religion            sql.NullString
		maritalStatus       sql.NullString
		educationLevel      sql.NullString
		jobCategoryID       sql.NullString
		experienceYears     sql.NullInt32
		monthlySalary       sql.NullString
		photoURL            sql.NullString
		videoURL            sql.NullString
		passportDocumentURL sql.NullString
		tenantSupplierID    sql.NullString
		deletedAt           sql.NullTime
	)

	if err := row.Scan(
		&w.ID,
		&w.TenantID,
		&w.WorkerCode,
		&w.CandidateID,
		&status,
		&statusChangedAt,
		&statusReason,
		&activatedAt,
		&terminatedAt,
		&terminationReason,
		&w.Profile.FullNameEn,
		&fullNameAr,
		&w.Profile.Nationality,
		&dateOfBirth,
		&gender,
		&passportNumber,
		&passportExpiry,
		&phone,
		&email,
		&religion,
		&maritalStatus,
		&educationLevel,
		&jobCategoryID,
		&experienceYears,
		&monthlySalary,
		&photoURL,
		&videoURL,
		&passportDocumentURL,
		&w.Profile.SourceType,
		&tenantSupplierID,
		&w.Version,
		&w.CreatedAt,
		&w.UpdatedAt,
		&deletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, worker.ErrWorkerNotFound
		}
		return nil, err
	}

	w.Status = worker.Status(status)
	w.StatusChangedAt = timePtr(statusChangedAt)
	w.StatusReason = stringPtr(statusReason)
	w.ActivatedAt = timePtr(activatedAt)
	w.TerminatedAt = timePtr(terminatedAt)
	w.TerminationReason = stringPtr(terminationReason)
	w.DeletedAt = timePtr(deletedAt)

	w.Profile.FullNameAr = stringPtr(fullNameAr)
	w.Profile.DateOfBirth = datePtr(dateOfBirth)
	w.Profile.Gender = stringPtr(gender)
	w.Profile.PassportNumber = stringPtr(passportNumber)
	w.Profile.PassportExpiry = datePtr(passportExpiry)
	w.Profile.Phone = stringPtr(phone)
	w.Profile.Email = stringPtr(email)
	w.Profile.Religion = stringPtr(religion)
	w.Profile.MaritalStatus = stringPtr(maritalStatus)
	w.Profile.EducationLevel = stringPtr(educationLevel)
	w.Profile.JobCategoryID = stringPtr(jobCategoryID)
	if experienceYears.Valid {
		years := int(experienceYears.Int32)
		w.Profile.ExperienceYears = &years
	}
	w.Profile.MonthlySalary = stringPtr(monthlySalary)
	w.Profile.PhotoURL = stringPtr(photoURL)
	w.Profile.VideoURL = stringPtr(videoURL)
	w.Profile.PassportDocumentURL = stringPtr(passportDocumentURL)
	w.Profile.TenantSupplierID = stringPtr(tenantSupplierID)

	return &w, nil
}

func translateWorkerPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return worker.ErrWorkerNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			switch pgErr.ConstraintName {
			case workersCandidateConstraint:
				return worker.ErrWorkerAlreadyExists
			case workersCodeConstraint:
				return worker.ErrWorkerCodeAlreadyExists
			default:
				return err
			}
		case foreignKeyViolationCode:
			return worker.ErrWorkerNotFound
		case checkViolationCode:
			return worker.ErrInvalidStatus
		}
	}

	return err
}

func nullableString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableTimestamp(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC()
}

func nullableDate(value *time.Time) any {
	if value == nil {
		return nil
	}
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, time.UTC)
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}

func datePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &date
}
