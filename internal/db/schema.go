package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- PEOPLE AND PROJECTS
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS scrum_master SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS name ON scrum_master TYPE string;
    DEFINE FIELD IF NOT EXISTS email ON scrum_master TYPE option<string>;

    DEFINE TABLE IF NOT EXISTS project SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS name ON project TYPE string;
    DEFINE FIELD IF NOT EXISTS description ON project TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS scrum_master ON project TYPE option<record<scrum_master>>;
    DEFINE FIELD IF NOT EXISTS created ON project TYPE datetime DEFAULT time::now();

    DEFINE TABLE IF NOT EXISTS employee SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS name ON employee TYPE string;
    DEFINE FIELD IF NOT EXISTS role ON employee TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS project ON employee TYPE option<record<project>>;
    DEFINE INDEX IF NOT EXISTS employee_project ON employee FIELDS project;

    -- ==========================================================================
    -- SPRINTS AND TASKS
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS sprint SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS name ON sprint TYPE string;
    DEFINE FIELD IF NOT EXISTS goal ON sprint TYPE string;
    DEFINE FIELD IF NOT EXISTS start_date ON sprint TYPE datetime;
    DEFINE FIELD IF NOT EXISTS end_date ON sprint TYPE datetime;
    DEFINE FIELD IF NOT EXISTS project ON sprint TYPE record<project>;
    DEFINE FIELD IF NOT EXISTS progress ON sprint TYPE float DEFAULT 0.0;
    DEFINE FIELD IF NOT EXISTS created ON sprint TYPE datetime DEFAULT time::now();
    DEFINE INDEX IF NOT EXISTS sprint_project ON sprint FIELDS project;

    -- Subtasks reference their task through parent
    DEFINE TABLE IF NOT EXISTS task SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS title ON task TYPE string;
    DEFINE FIELD IF NOT EXISTS description ON task TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS sprint ON task TYPE record<sprint>;
    DEFINE FIELD IF NOT EXISTS parent ON task TYPE option<record<task>>;
    DEFINE FIELD IF NOT EXISTS employee ON task TYPE option<record<employee>>;
    DEFINE FIELD IF NOT EXISTS status ON task TYPE string DEFAULT "incomplete";
    DEFINE FIELD IF NOT EXISTS progress ON task TYPE float DEFAULT 0.0;
    DEFINE INDEX IF NOT EXISTS task_sprint ON task FIELDS sprint;
    DEFINE INDEX IF NOT EXISTS task_employee ON task FIELDS employee;

    -- ==========================================================================
    -- REPORTS AND STANDUPS
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS report SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS kind ON report TYPE string;
    DEFINE FIELD IF NOT EXISTS subject ON report TYPE string;
    DEFINE FIELD IF NOT EXISTS date ON report TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS content ON report TYPE string;
    DEFINE FIELD IF NOT EXISTS project ON report TYPE record<project>;
    DEFINE INDEX IF NOT EXISTS report_date ON report FIELDS date;

    DEFINE TABLE IF NOT EXISTS standup SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS employee ON standup TYPE record<employee>;
    DEFINE FIELD IF NOT EXISTS date ON standup TYPE datetime;
    DEFINE FIELD IF NOT EXISTS text ON standup TYPE string;
    DEFINE FIELD IF NOT EXISTS intent ON standup TYPE string;
    DEFINE FIELD IF NOT EXISTS yesterday ON standup TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS today ON standup TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS blockers ON standup TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS report ON standup TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS date_text ON standup TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created ON standup TYPE datetime DEFAULT time::now();
    DEFINE INDEX IF NOT EXISTS standup_employee ON standup FIELDS employee;
    DEFINE INDEX IF NOT EXISTS standup_date ON standup FIELDS date;

    -- ==========================================================================
    -- TRAINING RUNS
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS training_run SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS kind ON training_run TYPE string;
    DEFINE FIELD IF NOT EXISTS status ON training_run TYPE string;
    DEFINE FIELD IF NOT EXISTS dataset ON training_run TYPE string;
    DEFINE FIELD IF NOT EXISTS output_dir ON training_run TYPE string;
    DEFINE FIELD IF NOT EXISTS config ON training_run TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS total_steps ON training_run TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS step ON training_run TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS loss ON training_run TYPE option<float>;
    DEFINE FIELD IF NOT EXISTS metrics ON training_run TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS error ON training_run TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS started_at ON training_run TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS completed_at ON training_run TYPE option<datetime>;
    DEFINE INDEX IF NOT EXISTS training_run_status ON training_run FIELDS status;
`

// dataTables lists tables in deletion order, dependents first.
var dataTables = []string{"training_run", "standup", "report", "task", "sprint", "employee", "project", "scrum_master"}
