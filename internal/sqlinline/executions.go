package sqlinline

const QInsertExecution = `--sql 8f1c2a40-3db1-4c2e-9b77-0d4f8a21e6c3
insert into executions (id, status, organization_id, base_execution_id, provider_api_keys, webhook_url, webhook_secret, created_at)
values ($1, $2, $3, nullif($4, ''), $5, $6, $7, now());
`

const QSelectExecution = `--sql 5a9e0d17-6b42-4f8a-8c31-fb92c44d1a05
select id, status, coalesce(organization_id, ''), coalesce(base_execution_id, ''), provider_api_keys, webhook_url, webhook_secret,
       result, coalesce(error_message, ''), created_at, completed_at
from executions
where id = $1;
`

const QSelectActiveExecutions = `--sql 9b04e7f2-c518-4da6-b3e0-4f76a821c90d
select id
from executions
where status in ('pending', 'processing')
order by created_at asc;
`

const QMarkExecutionProcessing = `--sql d3b54f26-91ac-4e07-b6d8-7e15a90cc4f2
update executions
set status = 'processing'
where id = $1 and status = 'pending';
`

const QCompleteExecution = `--sql 1c7aa983-2f60-4d1b-a4c9-8802de56b7e1
update executions
set status = 'completed', result = $2, completed_at = now()
where id = $1 and status in ('pending', 'processing');
`

const QFailExecution = `--sql 7e2d91c5-0b38-4a76-9f44-c61380aa52d9
update executions
set status = 'failed', error_message = $2, completed_at = now()
where id = $1 and status in ('pending', 'processing');
`
