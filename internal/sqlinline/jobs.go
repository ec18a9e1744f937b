package sqlinline

const QInsertJob = `--sql 94e7c2b8-5ad0-4f13-8e62-31c9f07d845a
insert into jobs (execution_id, id, type, params, depends_on, output, position, status, progress, created_at, updated_at)
values ($1, $2, $3, $4, $5, $6, $7, 'queued', 0, now(), now());
`

const QSelectJob = `--sql b2f80d34-17c6-4e95-a2d1-60e5b3a9f718
select execution_id, id, type, params, depends_on, output, status, progress,
       coalesce(provider_job_id, ''), result, coalesce(error_message, ''), created_at, updated_at
from jobs
where execution_id = $1 and id = $2;
`

const QSelectJobsByExecution = `--sql 3d61f5a9-8c02-44b7-9e38-f274ab10c6d5
select execution_id, id, type, params, depends_on, output, status, progress,
       coalesce(provider_job_id, ''), result, coalesce(error_message, ''), created_at, updated_at
from jobs
where execution_id = $1
order by position asc;
`

const QClaimJob = `--sql e58b3c71-29df-4086-b1a4-05c7d962e3f8
update jobs
set status = 'processing', updated_at = now()
where execution_id = $1 and id = $2 and status = 'queued';
`

const QUpdateJobProgress = `--sql 0a94d6e2-73bf-48c1-95d8-2e60c13f7a84
update jobs
set progress = greatest(progress, $3), updated_at = now()
where execution_id = $1 and id = $2 and status = 'processing';
`

const QSetJobProviderRef = `--sql c1372f60-eb85-4d49-a6f3-98014dc5b2e7
update jobs
set provider_job_id = $3, updated_at = now()
where execution_id = $1 and id = $2;
`

const QCompleteJob = `--sql 6f0d84a3-51c9-4b27-8e15-db3a962c40f1
update jobs
set status = 'completed', progress = 100, result = $3, updated_at = now()
where execution_id = $1 and id = $2 and status in ('queued', 'processing');
`

const QFailJob = `--sql 42c6e9b0-87d3-4f5a-91b2-6a50f8d1c3e7
update jobs
set status = 'failed', error_message = $3, updated_at = now()
where execution_id = $1 and id = $2 and status in ('queued', 'processing');
`
