package sqlinline

const QIncrementUsage = `--sql a8d1f403-6c27-49e5-b380-51f92c7e0d46
insert into usage_counters (organization_id, media_type, period, jobs_completed)
values ($1, $2, date_trunc('month', now()), 1)
on conflict (organization_id, media_type, period)
do update set jobs_completed = usage_counters.jobs_completed + 1;
`

const QSelectIntegrationToken = `--sql f6309b82-4d5e-47a1-bc68-20d7e91f53ca
select token
from integration_tokens
where organization_id = $1 and provider = $2;
`

const QUpsertIntegrationToken = `--sql 27b5c8e4-90fa-4326-ad17-e8c3065d94bf
insert into integration_tokens (organization_id, provider, token, props, updated_at)
values ($1, $2, $3, $4, now())
on conflict (organization_id, provider)
do update set token = excluded.token, props = excluded.props, updated_at = now();
`
