package models

import "time"

// Department groups programs for holiday/exam-period scoping.
type Department struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Program is a course of study owned by a department.
type Program struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Batch is a cohort of students progressing through a program together.
type Batch struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	ProgramID string    `db:"program_id" json:"program_id"`
	Semester  int       `db:"semester" json:"semester"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Subject is a taught course unit.
type Subject struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	Credits   int       `db:"credits" json:"credits"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Faculty is a teaching staff member.
type Faculty struct {
	ID           string    `db:"id" json:"id"`
	FullName     string    `db:"full_name" json:"full_name"`
	Email        string    `db:"email" json:"email"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
